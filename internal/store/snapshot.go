package store

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"

	"wisp/internal/vm"
)

// A snapshot body is a JSON document holding the data globals of a VM.
// Tables are stored once in Tables and referenced by index, so shared and
// cyclic tables survive a round trip. Functions and userdata are skipped,
// as is any table entry whose key or value is one of them.

const (
	kindNumber = "n"
	kindString = "s"
	kindBytes  = "b" // a string that is not valid UTF-8, base64 encoded
	kindTable  = "t"
)

type document struct {
	Globals []global   `json:"globals"`
	Tables  []tableDoc `json:"tables,omitempty"`
}

type global struct {
	Name  string       `json:"name"`
	Value encodedValue `json:"value"`
}

type tableDoc struct {
	Entries []pair `json:"entries,omitempty"`
}

type pair struct {
	Key   encodedValue `json:"k"`
	Value encodedValue `json:"v"`
}

// encodedValue carries numbers as text so that nan and inf survive.
type encodedValue struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
	ID   int    `json:"id,omitempty"`
}

type encoder struct {
	ids    map[*vm.Table]int
	tables []tableDoc
}

// encode serialises every global of v with a storable value and reports
// how many were written.
func encode(v *vm.VM) ([]byte, int, error) {
	enc := &encoder{ids: make(map[*vm.Table]int)}
	var doc document
	for name, value, ok := v.FirstVar(); ok; name, value, ok = v.NextVar(name) {
		if ev, ok := enc.value(value); ok {
			doc.Globals = append(doc.Globals, global{Name: name, Value: ev})
		}
	}
	doc.Tables = enc.tables
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "encode snapshot")
	}
	return body, len(doc.Globals), nil
}

func (e *encoder) value(v vm.Value) (encodedValue, bool) {
	switch x := v.(type) {
	case float64:
		return encodedValue{Kind: kindNumber, Text: strconv.FormatFloat(x, 'g', -1, 64)}, true
	case string:
		if !utf8.ValidString(x) {
			return encodedValue{Kind: kindBytes, Text: base64.StdEncoding.EncodeToString([]byte(x))}, true
		}
		return encodedValue{Kind: kindString, Text: x}, true
	case *vm.Table:
		return encodedValue{Kind: kindTable, ID: e.table(x)}, true
	}
	return encodedValue{}, false
}

func (e *encoder) table(t *vm.Table) int {
	if id, ok := e.ids[t]; ok {
		return id
	}
	id := len(e.tables)
	e.ids[t] = id
	e.tables = append(e.tables, tableDoc{})

	var entries []pair
	var key vm.Value
	for {
		k, v, ok, err := t.Next(key)
		if err != nil || !ok {
			break
		}
		key = k
		ek, okKey := e.value(k)
		ev, okValue := e.value(v)
		if okKey && okValue {
			entries = append(entries, pair{Key: ek, Value: ev})
		}
	}
	e.tables[id].Entries = entries
	return id
}

// decode restores the globals in body into v with raw writes and reports
// how many were set.
func decode(body []byte, v *vm.VM) (int, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, pkgerrors.Wrap(err, "decode snapshot")
	}

	tables := make([]*vm.Table, len(doc.Tables))
	for i := range tables {
		tables[i] = v.NewTable()
	}
	for i, td := range doc.Tables {
		for _, p := range td.Entries {
			k, err := decodeValue(p.Key, tables)
			if err != nil {
				return 0, err
			}
			val, err := decodeValue(p.Value, tables)
			if err != nil {
				return 0, err
			}
			if err := tables[i].Set(k, val); err != nil {
				return 0, pkgerrors.Wrapf(err, "decode snapshot: table %d", i)
			}
		}
	}

	for _, g := range doc.Globals {
		val, err := decodeValue(g.Value, tables)
		if err != nil {
			return 0, pkgerrors.Wrapf(err, "global %s", g.Name)
		}
		v.RawSetGlobal(g.Name, val)
	}
	return len(doc.Globals), nil
}

func decodeValue(ev encodedValue, tables []*vm.Table) (vm.Value, error) {
	switch ev.Kind {
	case kindNumber:
		n, err := strconv.ParseFloat(ev.Text, 64)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "decode snapshot")
		}
		return n, nil
	case kindString:
		return ev.Text, nil
	case kindBytes:
		b, err := base64.StdEncoding.DecodeString(ev.Text)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "decode snapshot")
		}
		return string(b), nil
	case kindTable:
		if ev.ID < 0 || ev.ID >= len(tables) {
			return nil, pkgerrors.Errorf("decode snapshot: table id %d out of range", ev.ID)
		}
		return tables[ev.ID], nil
	}
	return nil, pkgerrors.Errorf("decode snapshot: unknown kind %q", ev.Kind)
}
