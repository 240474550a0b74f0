package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"wisp/internal/bytecode"
)

// Value is any runtime value: nil, float64, string, *Table, *Function,
// *NativeFunction or *Userdata.
type Value interface{}

// Kind tags. User tags allocated by NewTag are positive.
const (
	TagUserdata  = 0
	TagNumber    = -1
	TagString    = -2
	TagTable     = -3
	TagFunction  = -4
	TagCFunction = -5
	TagNil       = -6
)

// typeNames is indexed by the negated kind tag.
var typeNames = [...]string{"userdata", "number", "string", "table", "function", "cfunction", "nil"}

// Function is a script function: a compiled prototype. Functions have no
// upvalues, so the prototype is all there is.
type Function struct {
	Chunk *bytecode.Chunk
}

func (f *Function) name() string {
	if f.Chunk.Name != "" {
		return f.Chunk.Name
	}
	if f.Chunk.Line == 0 {
		return "main chunk"
	}
	return fmt.Sprintf("function <%s:%d>", f.Chunk.Source, f.Chunk.Line)
}

// NativeFunction is a builtin implemented in Go. args holds exactly the
// values the caller passed; a missing argument is distinct from nil.
type NativeFunction struct {
	Name     string
	Function func(args []Value) ([]Value, error)
}

// Userdata is an opaque host value. Its tag is fixed at creation.
type Userdata struct {
	Data interface{}
	tag  int
}

// kind returns the kind tag of v, ignoring user tags.
func kind(v Value) int {
	switch v.(type) {
	case nil:
		return TagNil
	case float64:
		return TagNumber
	case string:
		return TagString
	case *Table:
		return TagTable
	case *Function:
		return TagFunction
	case *NativeFunction:
		return TagCFunction
	case *Userdata:
		return TagUserdata
	}
	panic(fmt.Sprintf("wisp: foreign value of type %T", v))
}

// TypeName is the name of v's kind.
func TypeName(v Value) string {
	return typeNames[-kind(v)]
}

// IsFalse reports whether v counts as false in a condition. Only nil does.
func IsFalse(v Value) bool {
	return v == nil
}

func isFunction(v Value) bool {
	switch v.(type) {
	case *Function, *NativeFunction:
		return true
	}
	return false
}

func boolValue(b bool) Value {
	if b {
		return 1.0
	}
	return nil
}

// ToNumber converts v to a number. Strings convert when their whole text
// is a decimal number.
func ToNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		return str2number(n)
	}
	return 0, false
}

func str2number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-') {
			return 0, false
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatNumber renders n the way scripts see it.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}

// toStringCoerce is the implicit conversion used by concatenation.
func toStringCoerce(v Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return FormatNumber(s), true
	}
	return "", false
}

// ToString is the diagnostic text of v used by tostring and print.
func ToString(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case float64:
		return FormatNumber(val)
	case string:
		return val
	case *Table:
		return fmt.Sprintf("table: %p", val)
	case *Function:
		return fmt.Sprintf("function: %p", val)
	case *NativeFunction:
		return fmt.Sprintf("cfunction: %p", val)
	case *Userdata:
		return fmt.Sprintf("userdata: %p", val)
	}
	return "<unknown object>"
}

// rawEqual compares by value for numbers and strings and by identity
// for everything else.
func rawEqual(a, b Value) bool {
	return a == b
}
