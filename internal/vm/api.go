package vm

import (
	"fmt"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"wisp/internal/bytecode"
	"wisp/internal/compiler"
	"wisp/internal/errors"
)

// Host embedding API. Every entry point that may run script code is an
// error boundary: a raised error is reported to the error method and
// returned as a *errors.ScriptError.

// DoString compiles and runs src as a main chunk and returns its results.
func (vm *VM) DoString(src string) ([]Value, error) {
	name := chunkName(src)
	return boundary(vm.runChunk(name, func() (*bytecode.Chunk, error) {
		return compiler.CompileSource(src, name)
	}))
}

// DoFile runs the file at path, or the VM's stdin when path is empty.
func (vm *VM) DoFile(path string) ([]Value, error) {
	results, se := vm.doFile(path)
	return boundary(results, se)
}

// Call invokes fn with args under an error boundary.
func (vm *VM) Call(fn Value, args ...Value) ([]Value, error) {
	return boundary(vm.pcall(fn, args))
}

// GetGlobal reads a global, honouring getglobal tag methods.
func (vm *VM) GetGlobal(name string) (Value, error) {
	results, err := vm.protect(func() []Value {
		return []Value{vm.getGlobal(name)}
	})
	return first(results), err
}

// SetGlobal writes a global, honouring setglobal tag methods.
func (vm *VM) SetGlobal(name string, v Value) error {
	_, err := vm.protect(func() []Value {
		vm.setGlobal(name, v)
		return nil
	})
	return err
}

// GetTable reads t[key], honouring gettable and index tag methods.
func (vm *VM) GetTable(t, key Value) (Value, error) {
	results, err := vm.protect(func() []Value {
		return []Value{vm.getTable(t, key)}
	})
	return first(results), err
}

// SetTable writes t[key] = v, honouring settable tag methods.
func (vm *VM) SetTable(t, key, v Value) error {
	_, err := vm.protect(func() []Value {
		vm.setTable(t, key, v)
		return nil
	})
	return err
}

func (vm *VM) RawGetGlobal(name string) Value {
	return vm.globals.get(name)
}

func (vm *VM) RawSetGlobal(name string, v Value) {
	vm.globals.set(name, v)
}

// Register installs a Go function as a global.
func (vm *VM) Register(name string, fn func(args []Value) ([]Value, error)) *NativeFunction {
	nf := &NativeFunction{Name: name, Function: fn}
	vm.globals.set(name, nf)
	return nf
}

// FirstVar returns the first global with a non-nil value in creation
// order.
func (vm *VM) FirstVar() (name string, value Value, ok bool) {
	return vm.nextVar("", true)
}

// NextVar returns the first global with a non-nil value that follows
// after in creation order. Every name is a real global here, the empty
// string included; use FirstVar to start a walk.
func (vm *VM) NextVar(after string) (name string, value Value, ok bool) {
	return vm.nextVar(after, false)
}

// Next returns the entry of t following key; a nil key starts the
// traversal.
func (vm *VM) Next(t *Table, key Value) (k, v Value, ok bool, err error) {
	return t.Next(key)
}

func (vm *VM) NewTable() *Table {
	return NewTable()
}

// NewUserdata wraps data in a userdata with the given tag, which must be
// TagUserdata or an allocated user tag.
func (vm *VM) NewUserdata(data interface{}, tag int) (*Userdata, error) {
	if tag != TagUserdata && (tag < 1 || tag > vm.lastTag) {
		return nil, errors.NewRuntimeError(fmt.Sprintf("%d is not a valid tag for userdata", tag))
	}
	return &Userdata{Data: data, tag: tag}, nil
}

// IsPlaceholder reports whether v is the value dostring and dofile return
// for a chunk that succeeded without results.
func (vm *VM) IsPlaceholder(v Value) bool {
	u, ok := v.(*Userdata)
	return ok && u == vm.placeholder
}

// boundary converts an internal result pair to the host form, keeping a
// nil *ScriptError from becoming a non-nil error.
func boundary(results []Value, se *errors.ScriptError) ([]Value, error) {
	if se != nil {
		return nil, se
	}
	return results, nil
}

// protect runs fn under an error boundary.
func (vm *VM) protect(fn func() []Value) ([]Value, error) {
	native := &NativeFunction{
		Name: "protect",
		Function: func([]Value) ([]Value, error) {
			return fn(), nil
		},
	}
	return boundary(vm.pcall(native, nil))
}

// runChunk compiles a chunk with load and runs it under an error
// boundary. A compile error is reported like a runtime error.
func (vm *VM) runChunk(name string, load func() (*bytecode.Chunk, error)) ([]Value, *errors.ScriptError) {
	chunk, err := load()
	if err != nil {
		se, ok := errors.As(err)
		if !ok {
			se = errors.NewRuntimeError(err.Error())
		}
		vm.notify(se)
		vm.logger.Debug().Str("chunk", name).Err(se).Msg("chunk failed to compile")
		return nil, se
	}
	results, se := vm.pcall(&Function{Chunk: chunk}, nil)
	if se != nil {
		vm.logger.Debug().Str("chunk", name).Err(se).Msg("chunk failed")
	}
	return results, se
}

func (vm *VM) doFile(path string) ([]Value, *errors.ScriptError) {
	name := path
	var src []byte
	var err error
	if path == "" {
		name = "(stdin)"
		src, err = io.ReadAll(vm.stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		err = pkgerrors.Wrapf(err, "cannot read %s", name)
		se := errors.NewRuntimeError(err.Error())
		vm.notify(se)
		return nil, se
	}
	return vm.runChunk(name, func() (*bytecode.Chunk, error) {
		return compiler.CompileSource(string(src), name)
	})
}

// chunkName derives a readable chunk name from source text.
func chunkName(src string) string {
	line := src
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i] + "..."
	}
	if len(line) > 40 {
		line = line[:37] + "..."
	}
	return fmt.Sprintf("[string %q]", line)
}
