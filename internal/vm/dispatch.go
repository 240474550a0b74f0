package vm

import (
	"math"
	"strings"

	"wisp/internal/bytecode"
)

var arithEvents = map[bytecode.OpCode]string{
	bytecode.OpAdd: "add",
	bytecode.OpSub: "sub",
	bytecode.OpMul: "mul",
	bytecode.OpDiv: "div",
	bytecode.OpPow: "pow",
}

var orderEvents = map[bytecode.OpCode]string{
	bytecode.OpLess:         "lt",
	bytecode.OpLessEqual:    "le",
	bytecode.OpGreater:      "gt",
	bytecode.OpGreaterEqual: "ge",
}

// getTable reads t[key] with tag-method dispatch.
func (vm *VM) getTable(t, key Value) Value {
	tag := vm.TagOf(t)
	if tm := vm.tagMethod(tag, EventGetTable); tm != nil {
		return first(vm.call(tm, []Value{t, key}))
	}
	tbl, ok := t.(*Table)
	if !ok {
		vm.runtimeError("indexed expression not a table")
	}
	v := tbl.Get(key)
	if v == nil {
		if tm := vm.tagMethod(tag, EventIndex); tm != nil {
			return first(vm.call(tm, []Value{t, key}))
		}
	}
	return v
}

// setTable writes t[key] = v with tag-method dispatch.
func (vm *VM) setTable(t, key, v Value) {
	if tm := vm.tagMethod(vm.TagOf(t), EventSetTable); tm != nil {
		vm.call(tm, []Value{t, key, v})
		return
	}
	tbl, ok := t.(*Table)
	if !ok {
		vm.runtimeError("indexed expression not a table")
	}
	if err := tbl.Set(key, v); err != nil {
		vm.raise(err)
	}
}

// binaryTM finds the handler for event on a's tag, falling back to b's.
func (vm *VM) binaryTM(a, b Value, event string) Value {
	if tm := vm.tagMethod(vm.TagOf(a), event); tm != nil {
		return tm
	}
	return vm.tagMethod(vm.TagOf(b), event)
}

func (vm *VM) arith(op bytecode.OpCode, a, b Value) Value {
	if x, ok := ToNumber(a); ok {
		if y, ok := ToNumber(b); ok {
			switch op {
			case bytecode.OpAdd:
				return x + y
			case bytecode.OpSub:
				return x - y
			case bytecode.OpMul:
				return x * y
			case bytecode.OpDiv:
				return x / y
			case bytecode.OpPow:
				return math.Pow(x, y)
			}
		}
	}
	event := arithEvents[op]
	tm := vm.binaryTM(a, b, event)
	if tm == nil {
		vm.runtimeError("unexpected type at arithmetic operation")
	}
	return first(vm.call(tm, []Value{a, b, event}))
}

func (vm *VM) negate(a Value) Value {
	if x, ok := ToNumber(a); ok {
		return -x
	}
	tm := vm.tagMethod(vm.TagOf(a), EventUnm)
	if tm == nil {
		vm.runtimeError("unexpected type at arithmetic operation")
	}
	return first(vm.call(tm, []Value{a, nil, EventUnm}))
}

func (vm *VM) compare(op bytecode.OpCode, a, b Value) Value {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return boolValue(order(op, compareNumbers(x, y), math.IsNaN(x) || math.IsNaN(y)))
		}
	case string:
		if y, ok := b.(string); ok {
			return boolValue(order(op, strings.Compare(x, y), false))
		}
	}
	event := orderEvents[op]
	tm := vm.binaryTM(a, b, event)
	if tm == nil {
		vm.runtimeError("unexpected type at comparison")
	}
	return first(vm.call(tm, []Value{a, b, event}))
}

func compareNumbers(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// order applies op to a three-way comparison. Every comparison involving
// NaN is false.
func order(op bytecode.OpCode, cmp int, unordered bool) bool {
	if unordered {
		return false
	}
	switch op {
	case bytecode.OpLess:
		return cmp < 0
	case bytecode.OpLessEqual:
		return cmp <= 0
	case bytecode.OpGreater:
		return cmp > 0
	case bytecode.OpGreaterEqual:
		return cmp >= 0
	}
	return false
}

func (vm *VM) concat(a, b Value) Value {
	if x, ok := toStringCoerce(a); ok {
		if y, ok := toStringCoerce(b); ok {
			return x + y
		}
	}
	tm := vm.binaryTM(a, b, EventConcat)
	if tm == nil {
		vm.runtimeError("unexpected type at concatenation")
	}
	return first(vm.call(tm, []Value{a, b, EventConcat}))
}
