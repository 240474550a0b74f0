package vm

import (
	"wisp/internal/bytecode"
	"wisp/internal/compiler"
	"wisp/internal/errors"
)

// overrideErrorMethod installs argument i as the error method when it was
// passed, nil included, and returns the function that restores the
// previous one.
func (vm *VM) overrideErrorMethod(p params, i int) func() {
	handler, ok := p.get(i)
	if !ok {
		return func() {}
	}
	prev := vm.SetErrorMethod(handler)
	return func() { vm.SetErrorMethod(prev) }
}

// execResults maps the outcome of a nested chunk onto dostring results:
// nothing on failure, the placeholder for success without results.
func (vm *VM) execResults(results []Value, se *errors.ScriptError) []Value {
	if se != nil {
		return nil
	}
	if len(results) == 0 {
		return []Value{vm.placeholder}
	}
	return results
}

func (vm *VM) builtinDoString(args []Value) ([]Value, error) {
	p := newParams("dostring", args)
	src, err := p.str(1)
	if err != nil {
		return nil, err
	}
	restore := vm.overrideErrorMethod(p, 2)
	defer restore()

	name := chunkName(src)
	return vm.execResults(vm.runChunk(name, func() (*bytecode.Chunk, error) {
		return compiler.CompileSource(src, name)
	})), nil
}

// dofile([path [, errormethod]]) reads stdin when path is absent or nil.
func (vm *VM) builtinDoFile(args []Value) ([]Value, error) {
	p := newParams("dofile", args)
	path, err := p.optStr(1, "")
	if err != nil {
		return nil, err
	}
	restore := vm.overrideErrorMethod(p, 2)
	defer restore()

	return vm.execResults(vm.doFile(path)), nil
}
