package vm

import (
	"wisp/internal/errors"
)

// Global variable reflection

func (vm *VM) builtinGetGlobal(args []Value) ([]Value, error) {
	name, err := newParams("getglobal", args).str(1)
	if err != nil {
		return nil, err
	}
	return []Value{vm.getGlobal(name)}, nil
}

func (vm *VM) builtinSetGlobal(args []Value) ([]Value, error) {
	p := newParams("setglobal", args)
	v, err := p.value(2, "")
	if err != nil {
		return nil, err
	}
	name, err := p.str(1)
	if err != nil {
		return nil, err
	}
	vm.setGlobal(name, v)
	return []Value{v}, nil
}

func (vm *VM) builtinRawGetGlobal(args []Value) ([]Value, error) {
	name, err := newParams("rawgetglobal", args).str(1)
	if err != nil {
		return nil, err
	}
	return []Value{vm.globals.get(name)}, nil
}

func (vm *VM) builtinRawSetGlobal(args []Value) ([]Value, error) {
	p := newParams("rawsetglobal", args)
	v, err := p.value(2, "")
	if err != nil {
		return nil, err
	}
	name, err := p.str(1)
	if err != nil {
		return nil, err
	}
	vm.globals.set(name, v)
	return []Value{v}, nil
}

// nextvar(name) returns the global after name and its value; nextvar(nil)
// starts the traversal. Looking up name creates its slot.
func (vm *VM) builtinNextVar(args []Value) ([]Value, error) {
	p := newParams("nextvar", args)
	var name string
	start := true
	if v, _ := p.get(1); v != nil {
		s, err := p.str(1)
		if err != nil {
			return nil, err
		}
		name, start = s, false
	}
	next, value, ok := vm.nextVar(name, start)
	if !ok {
		return nil, nil
	}
	return []Value{next, value}, nil
}

// Table iteration and raw access

func (vm *VM) builtinNext(args []Value) ([]Value, error) {
	p := newParams("next", args)
	t, err := p.table(1)
	if err != nil {
		return nil, err
	}
	key, err := p.value(2, "value expected")
	if err != nil {
		return nil, err
	}
	k, v, ok, err := t.Next(key)
	if err != nil {
		return nil, errors.NewRuntimeError(err.Error())
	}
	if !ok {
		return nil, nil
	}
	return []Value{k, v}, nil
}

func (vm *VM) builtinRawGetTable(args []Value) ([]Value, error) {
	p := newParams("rawgettable", args)
	if _, err := p.value(1, ""); err != nil {
		return nil, err
	}
	key, err := p.value(2, "")
	if err != nil {
		return nil, err
	}
	t, err := p.table(1)
	if err != nil {
		return nil, err
	}
	return []Value{t.Get(key)}, nil
}

func (vm *VM) builtinRawSetTable(args []Value) ([]Value, error) {
	p := newParams("rawsettable", args)
	if !p.has(1) || !p.has(2) || !p.has(3) {
		return nil, p.argError(0, "")
	}
	t, err := p.table(1)
	if err != nil {
		return nil, err
	}
	key, _ := p.get(2)
	v, _ := p.get(3)
	if err := t.Set(key, v); err != nil {
		return nil, errors.NewRuntimeError(err.Error())
	}
	return nil, nil
}

// Tags and tag methods

func (vm *VM) builtinNewTag(args []Value) ([]Value, error) {
	return []Value{float64(vm.NewTag())}, nil
}

func (vm *VM) builtinSetTag(args []Value) ([]Value, error) {
	p := newParams("settag", args)
	t, err := p.table(1)
	if err != nil {
		return nil, err
	}
	tag, err := p.integer(2)
	if err != nil {
		return nil, err
	}
	return nil, vm.SetTag(t, tag)
}

func (vm *VM) builtinSetTagMethod(args []Value) ([]Value, error) {
	p := newParams("settagmethod", args)
	handler, err := p.value(3, "value expected")
	if err != nil {
		return nil, err
	}
	tag, err := p.integer(1)
	if err != nil {
		return nil, err
	}
	event, err := p.str(2)
	if err != nil {
		return nil, err
	}
	prev, err := vm.SetTagMethod(tag, event, handler)
	if err != nil {
		return nil, err
	}
	return []Value{prev}, nil
}

func (vm *VM) builtinGetTagMethod(args []Value) ([]Value, error) {
	p := newParams("gettagmethod", args)
	tag, err := p.integer(1)
	if err != nil {
		return nil, err
	}
	event, err := p.str(2)
	if err != nil {
		return nil, err
	}
	tm, err := vm.GetTagMethod(tag, event)
	if err != nil {
		return nil, err
	}
	return []Value{tm}, nil
}

func (vm *VM) builtinSetErrorMethod(args []Value) ([]Value, error) {
	handler, err := newParams("seterrormethod", args).value(1, "value expected")
	if err != nil {
		return nil, err
	}
	return []Value{vm.SetErrorMethod(handler)}, nil
}
