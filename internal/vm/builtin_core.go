package vm

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/dustin/go-humanize"

	"wisp/internal/errors"
)

// registerBuiltins installs the builtin library. Registration order is the
// order nextvar enumerates the builtins in.
func (vm *VM) registerBuiltins() {
	var builtins []*NativeFunction
	if vm.compatFallbacks {
		builtins = append(builtins, &NativeFunction{Name: "setfallback", Function: vm.builtinSetFallback})
	}
	if vm.debugBuiltins {
		builtins = append(builtins, &NativeFunction{Name: "totalmem", Function: vm.builtinTotalMem})
	}
	builtins = append(builtins, []*NativeFunction{
		{Name: "assert", Function: vm.builtinAssert},
		{Name: "call", Function: vm.builtinCall},
		{Name: "collectgarbage", Function: vm.builtinCollectGarbage},
		{Name: "dofile", Function: vm.builtinDoFile},
		{Name: "dostring", Function: vm.builtinDoString},
		{Name: "error", Function: vm.builtinError},
		{Name: "getglobal", Function: vm.builtinGetGlobal},
		{Name: "newtag", Function: vm.builtinNewTag},
		{Name: "next", Function: vm.builtinNext},
		{Name: "nextvar", Function: vm.builtinNextVar},
		{Name: "print", Function: vm.builtinPrint},
		{Name: "rawgetglobal", Function: vm.builtinRawGetGlobal},
		{Name: "rawgettable", Function: vm.builtinRawGetTable},
		{Name: "rawsetglobal", Function: vm.builtinRawSetGlobal},
		{Name: "rawsettable", Function: vm.builtinRawSetTable},
		{Name: "seterrormethod", Function: vm.builtinSetErrorMethod},
		{Name: "setglobal", Function: vm.builtinSetGlobal},
		{Name: "settagmethod", Function: vm.builtinSetTagMethod},
		{Name: "gettagmethod", Function: vm.builtinGetTagMethod},
		{Name: "settag", Function: vm.builtinSetTag},
		{Name: "tonumber", Function: vm.builtinToNumber},
		{Name: "tostring", Function: vm.builtinToString},
		{Name: "tag", Function: vm.builtinTag},
		{Name: "type", Function: vm.builtinType},
	}...)

	for _, b := range builtins {
		vm.globals.set(b.Name, b)
	}
	vm.globals.set("_VERSION", Version)
}

func (vm *VM) builtinType(args []Value) ([]Value, error) {
	p := newParams("type", args)
	v, ok := p.get(1)
	if !ok {
		return nil, p.argError(1, "no argument")
	}
	return []Value{TypeName(v), float64(vm.TagOf(v))}, nil
}

func (vm *VM) builtinToString(args []Value) ([]Value, error) {
	v, err := newParams("tostring", args).value(1, "value expected")
	if err != nil {
		return nil, err
	}
	return []Value{ToString(v)}, nil
}

func (vm *VM) builtinPrint(args []Value) ([]Value, error) {
	for _, v := range args {
		fmt.Fprintln(vm.stdout, ToString(v))
	}
	return nil, nil
}

// tonumber yields no result when its argument is not convertible.
func (vm *VM) builtinToNumber(args []Value) ([]Value, error) {
	v, _ := newParams("tonumber", args).get(1)
	if n, ok := ToNumber(v); ok {
		return []Value{n}, nil
	}
	return nil, nil
}

func (vm *VM) builtinTag(args []Value) ([]Value, error) {
	v, err := newParams("tag", args).value(1, "value expected")
	if err != nil {
		return nil, err
	}
	return []Value{float64(vm.TagOf(v))}, nil
}

func (vm *VM) builtinError(args []Value) ([]Value, error) {
	v, _ := newParams("error", args).get(1)
	msg, ok := toStringCoerce(v)
	if !ok {
		msg = "(no message)"
	}
	return nil, errors.NewUserError(msg)
}

func (vm *VM) builtinAssert(args []Value) ([]Value, error) {
	if v, ok := newParams("assert", args).get(1); !ok || v == nil {
		return nil, errors.NewUserError("assertion failed!")
	}
	return nil, nil
}

// collectgarbage runs the Go collector and returns the number of heap
// objects freed. A positive argument first becomes the GC percent, unless
// GC tuning is disabled for this VM.
func (vm *VM) builtinCollectGarbage(args []Value) ([]Value, error) {
	limit, err := newParams("collectgarbage", args).optNumber(1, 0)
	if err != nil {
		return nil, err
	}
	if limit > 0 && vm.gcTuning {
		debug.SetGCPercent(int(limit))
	}
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	runtime.GC()
	runtime.ReadMemStats(&after)
	freed := after.Frees - before.Frees
	vm.logger.Debug().
		Uint64("freed", freed).
		Str("heap", humanize.Bytes(after.HeapAlloc)).
		Msg("collectgarbage")
	return []Value{float64(freed)}, nil
}
