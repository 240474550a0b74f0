package vm

import (
	"fmt"

	"wisp/internal/errors"
)

// Events consulted by the evaluator. Event names are free-form strings;
// hosts may register handlers for events of their own.
const (
	EventIndex     = "index"
	EventGetTable  = "gettable"
	EventSetTable  = "settable"
	EventGetGlobal = "getglobal"
	EventSetGlobal = "setglobal"
	EventConcat    = "concat"
	EventUnm       = "unm"
	EventFunction  = "function"
)

// nativeEvents lists, per kind tag, the events the evaluator always
// handles itself. Handlers for them could never run, so they are refused.
var nativeEvents = map[int][]string{
	TagTable:     {EventGetTable, EventSetTable},
	TagNumber:    {"add", "sub", "mul", "div", "pow", EventUnm, "lt", "le", "gt", "ge", EventConcat},
	TagString:    {"lt", "le", "gt", "ge", EventConcat},
	TagFunction:  {EventFunction},
	TagCFunction: {EventFunction},
}

func validEvent(tag int, event string) bool {
	for _, e := range nativeEvents[tag] {
		if e == event {
			return false
		}
	}
	return true
}

type tmKey struct {
	tag   int
	event string
}

// NewTag allocates a fresh user tag. Tags are never reused.
func (vm *VM) NewTag() int {
	vm.lastTag++
	vm.logger.Debug().Int("tag", vm.lastTag).Msg("new tag")
	return vm.lastTag
}

// validTag accepts the kind tags and every allocated user tag.
func (vm *VM) validTag(tag int) bool {
	return tag >= TagNil && tag <= vm.lastTag
}

// TagOf returns the dynamic tag of v. Tables and userdata carry their own
// tag; every other value reports its kind tag.
func (vm *VM) TagOf(v Value) int {
	switch val := v.(type) {
	case *Table:
		return val.tag
	case *Userdata:
		return val.tag
	}
	return kind(v)
}

// SetTag stamps t with tag, which must be the plain table tag or a user tag.
func (vm *VM) SetTag(t *Table, tag int) error {
	if tag != TagTable && (tag < 1 || tag > vm.lastTag) {
		return errors.NewRuntimeError(fmt.Sprintf("%d is not a valid tag for a table", tag))
	}
	t.tag = tag
	return nil
}

// SetTagMethod installs handler for (tag, event) and returns the previous
// handler. A nil handler removes the entry.
func (vm *VM) SetTagMethod(tag int, event string, handler Value) (Value, error) {
	if !vm.validTag(tag) {
		return nil, errors.NewRuntimeError(fmt.Sprintf("%d is not a valid tag", tag))
	}
	if !validEvent(tag, event) {
		return nil, errors.NewRuntimeError(fmt.Sprintf("cannot change tag method '%s' for tag %d", event, tag))
	}
	key := tmKey{tag: tag, event: event}
	prev := vm.tagMethods[key]
	if handler == nil {
		delete(vm.tagMethods, key)
	} else {
		vm.tagMethods[key] = handler
	}
	return prev, nil
}

func (vm *VM) GetTagMethod(tag int, event string) (Value, error) {
	if !vm.validTag(tag) {
		return nil, errors.NewRuntimeError(fmt.Sprintf("%d is not a valid tag", tag))
	}
	return vm.tagMethods[tmKey{tag: tag, event: event}], nil
}

func (vm *VM) tagMethod(tag int, event string) Value {
	return vm.tagMethods[tmKey{tag: tag, event: event}]
}
