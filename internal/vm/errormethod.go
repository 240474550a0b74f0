package vm

import (
	"fmt"

	"wisp/internal/errors"
)

// SetErrorMethod installs handler as the error method and returns the one
// it replaces. The error method is called with the message of every raised
// error before the error unwinds; it cannot stop the unwinding. A nil
// handler disables notification.
func (vm *VM) SetErrorMethod(handler Value) Value {
	prev := vm.errorMethod
	vm.errorMethod = handler
	vm.logger.Debug().Str("handler", ToString(handler)).Msg("error method set")
	return prev
}

func (vm *VM) newDefaultErrorMethod() *NativeFunction {
	return &NativeFunction{
		Name: "errormethod",
		Function: func(args []Value) ([]Value, error) {
			msg, ok := toStringCoerce(first(args))
			if !ok {
				msg = "(no message)"
			}
			fmt.Fprintf(vm.stderr, "wisp: %s\n", msg)
			return nil, nil
		},
	}
}

// notify reports se to the error method once. Errors raised while the
// error method runs are marked reported and otherwise ignored.
func (vm *VM) notify(se *errors.ScriptError) {
	if se.Reported {
		return
	}
	se.Reported = true
	if vm.handlingError || vm.errorMethod == nil {
		return
	}
	vm.handlingError = true
	defer func() { vm.handlingError = false }()
	vm.pcall(vm.errorMethod, []Value{se.Message})
}

// annotate attaches the source position and the script call stack of the
// running frames, unless se already carries them.
func (vm *VM) annotate(se *errors.ScriptError) {
	if len(se.CallStack) > 0 {
		return
	}
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		chunk := fr.fn.Chunk
		line := chunk.GetDebugInfo(fr.ip - 1).Line
		if i == len(vm.frames)-1 {
			se.At(chunk.Source, line)
		}
		se.AddStackFrame(fr.fn.name(), chunk.Source, line)
	}
}

// throw raises se: it is annotated, reported, then unwinds to the
// nearest protected call.
func (vm *VM) throw(se *errors.ScriptError) {
	vm.annotate(se)
	vm.notify(se)
	panic(se)
}

func (vm *VM) runtimeError(format string, args ...interface{}) {
	vm.throw(errors.NewRuntimeError(fmt.Sprintf(format, args...)))
}

// raise turns a Go error returned by a builtin into a script error.
func (vm *VM) raise(err error) {
	se, ok := errors.As(err)
	if !ok {
		se = errors.NewRuntimeError(err.Error())
	}
	vm.throw(se)
}
