package vm

import (
	"wisp/internal/errors"
)

// params gives a builtin 1-based access to its arguments. An index past
// the end of the list is a missing argument, which is not the same as an
// explicit nil.
type params struct {
	fn   string
	args []Value
}

func newParams(fn string, args []Value) params {
	return params{fn: fn, args: args}
}

func (p params) get(i int) (Value, bool) {
	if i < 1 || i > len(p.args) {
		return nil, false
	}
	return p.args[i-1], true
}

func (p params) has(i int) bool {
	return i >= 1 && i <= len(p.args)
}

func (p params) argError(i int, detail string) error {
	return errors.NewArgumentError(i, p.fn, detail)
}

// value requires argument i to be present; nil is accepted.
func (p params) value(i int, detail string) (Value, error) {
	v, ok := p.get(i)
	if !ok {
		return nil, p.argError(i, detail)
	}
	return v, nil
}

func (p params) table(i int) (*Table, error) {
	v, _ := p.get(i)
	t, ok := v.(*Table)
	if !ok {
		return nil, p.argError(i, "table expected")
	}
	return t, nil
}

// str accepts strings and numbers, converting the latter.
func (p params) str(i int) (string, error) {
	v, _ := p.get(i)
	s, ok := toStringCoerce(v)
	if !ok {
		return "", p.argError(i, "string expected")
	}
	return s, nil
}

func (p params) optStr(i int, def string) (string, error) {
	if v, ok := p.get(i); !ok || v == nil {
		return def, nil
	}
	return p.str(i)
}

// number accepts numbers and numeric strings.
func (p params) number(i int) (float64, error) {
	v, _ := p.get(i)
	n, ok := ToNumber(v)
	if !ok {
		return 0, p.argError(i, "number expected")
	}
	return n, nil
}

func (p params) optNumber(i int, def float64) (float64, error) {
	if v, ok := p.get(i); !ok || v == nil {
		return def, nil
	}
	return p.number(i)
}

func (p params) integer(i int) (int, error) {
	n, err := p.number(i)
	return int(n), err
}
