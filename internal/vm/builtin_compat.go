package vm

import (
	"fmt"

	"wisp/internal/errors"
)

var (
	arithFallbackEvents = []string{"add", "sub", "mul", "div", "pow", EventUnm}
	orderFallbackEvents = []string{"lt", "le", "gt", "ge"}
	kindTags            = []int{TagUserdata, TagNumber, TagString, TagTable, TagFunction, TagCFunction, TagNil}
)

// fallbackEvents are the old fallback names that map onto a single event.
var fallbackEvents = map[string]bool{
	EventGetTable:  true,
	EventSetTable:  true,
	EventIndex:     true,
	EventSetGlobal: true,
	EventConcat:    true,
	EventFunction:  true,
}

// setfallback(name, fn) emulates the fallback interface that predates tag
// methods by installing fn as the tag method for the matching events on
// every kind tag that accepts them. It returns the previous handler, or a
// native function reproducing the default behaviour when there was none.
func (vm *VM) builtinSetFallback(args []Value) ([]Value, error) {
	p := newParams("setfallback", args)
	name, err := p.str(1)
	if err != nil {
		return nil, err
	}
	fn, _ := p.get(2)
	if !isFunction(fn) {
		return nil, p.argError(2, "function expected")
	}

	var old Value
	var replacement *NativeFunction
	switch {
	case name == "error":
		old = vm.SetErrorMethod(fn)
		replacement = vm.newDefaultErrorMethod()
	case name == EventGetGlobal:
		old = vm.tagMethod(TagNil, EventGetGlobal)
		vm.tagMethods[tmKey{TagNil, EventGetGlobal}] = fn
		replacement = nilFallback()
	case name == "arith":
		old = vm.tagMethod(TagNil, "pow")
		vm.fillKindTags(arithFallbackEvents, fn)
		replacement = typeFallback()
	case name == "order":
		old = vm.tagMethod(TagNil, "lt")
		vm.fillKindTags(orderFallbackEvents, fn)
		replacement = typeFallback()
	case fallbackEvents[name]:
		old = vm.tagMethod(TagNil, name)
		vm.fillKindTags([]string{name}, fn)
		if name == EventIndex {
			replacement = nilFallback()
		} else {
			replacement = typeFallback()
		}
	default:
		return nil, errors.NewRuntimeError(fmt.Sprintf("'%s' is not a valid fallback name", name))
	}

	if old != nil {
		return []Value{old}, nil
	}
	return []Value{replacement}, nil
}

func (vm *VM) fillKindTags(events []string, fn Value) {
	for _, tag := range kindTags {
		for _, event := range events {
			if validEvent(tag, event) {
				vm.tagMethods[tmKey{tag, event}] = fn
			}
		}
	}
}

func nilFallback() *NativeFunction {
	return &NativeFunction{
		Name:     "nilfallback",
		Function: func([]Value) ([]Value, error) { return []Value{nil}, nil },
	}
}

func typeFallback() *NativeFunction {
	return &NativeFunction{
		Name: "typefallback",
		Function: func([]Value) ([]Value, error) {
			return nil, errors.NewRuntimeError("unexpected type")
		},
	}
}
