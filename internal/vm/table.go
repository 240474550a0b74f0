package vm

import (
	"math"

	"github.com/pkg/errors"
)

var (
	errNilIndex = errors.New("table index is nil")
	errNaNIndex = errors.New("table index is NaN")
	errBadNext  = errors.New("invalid key to 'next'")
)

type tableEntry struct {
	key   Value
	value Value // nil marks a removed entry
}

// Table is an associative array. Entries keep their insertion order so
// that Next can find the successor of any key without external state.
// Removing a key leaves a dead entry behind; dead entries are compacted
// only when a new key is inserted, so assigning nil to existing keys
// during a traversal is safe.
type Table struct {
	entries []tableEntry
	index   map[Value]int
	live    int
	tag     int
}

func NewTable() *Table {
	return &Table{
		index: make(map[Value]int),
		tag:   TagTable,
	}
}

func checkKey(key Value) error {
	switch k := key.(type) {
	case nil:
		return errNilIndex
	case float64:
		if math.IsNaN(k) {
			return errNaNIndex
		}
	}
	return nil
}

// Get is a raw read; missing keys read as nil.
func (t *Table) Get(key Value) Value {
	if i, ok := t.index[key]; ok {
		return t.entries[i].value
	}
	return nil
}

// GetString is Get with a string key.
func (t *Table) GetString(key string) Value {
	return t.Get(key)
}

// Set is a raw write. Writing nil removes the key.
func (t *Table) Set(key, value Value) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if i, ok := t.index[key]; ok {
		old := t.entries[i].value
		t.entries[i].value = value
		switch {
		case old == nil && value != nil:
			t.live++
		case old != nil && value == nil:
			t.live--
		}
		return nil
	}
	if value == nil {
		return nil
	}
	if len(t.entries) >= 8 && t.live*2 < len(t.entries) {
		t.compact()
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, tableEntry{key: key, value: value})
	t.live++
	return nil
}

func (t *Table) compact() {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.value == nil {
			delete(t.index, e.key)
			continue
		}
		t.index[e.key] = len(kept)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = tableEntry{}
	}
	t.entries = kept
}

// Next returns the entry following key, or the first entry when key is
// nil. ok is false once the traversal is exhausted.
func (t *Table) Next(key Value) (k, v Value, ok bool, err error) {
	start := 0
	if key != nil {
		i, found := t.index[key]
		if !found {
			return nil, nil, false, errBadNext
		}
		start = i + 1
	}
	for i := start; i < len(t.entries); i++ {
		if e := t.entries[i]; e.value != nil {
			return e.key, e.value, true, nil
		}
	}
	return nil, nil, false, nil
}

// Len is the number of keys with a non-nil value.
func (t *Table) Len() int {
	return t.live
}

// Tag is the table's current tag.
func (t *Table) Tag() int {
	return t.tag
}
