package vm

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"wisp/internal/bytecode"
	"wisp/internal/errors"
)

// Version is published to scripts as _VERSION.
const Version = "Wisp 1.0"

const (
	DefaultMaxCallDepth = 200

	// extra depth granted while the error method runs, so that a stack
	// overflow can still be reported
	errorMethodHeadroom = 20

	maxCallArgs = 1 << 16
)

type frame struct {
	fn   *Function
	base int
	ip   int
}

// VM is one runtime instance. Every registry (globals, tag methods, the
// tag counter and the error method) belongs to the instance, so separate
// VMs may run on separate goroutines. A single VM is not safe for
// concurrent use.
type VM struct {
	stack  []Value
	frames []*frame
	depth  int

	globals       *globalTable
	tagMethods    map[tmKey]Value
	lastTag       int
	errorMethod   Value
	handlingError bool

	// returned by dostring and dofile when a chunk succeeds with no results
	placeholder *Userdata

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	logger zerolog.Logger

	maxCallDepth    int
	compatFallbacks bool
	debugBuiltins   bool
	gcTuning        bool
}

// Option configures a VM.
type Option func(*VM)

func WithLogger(logger zerolog.Logger) Option {
	return func(vm *VM) { vm.logger = logger }
}

func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.stdout = w }
}

func WithStderr(w io.Writer) Option {
	return func(vm *VM) { vm.stderr = w }
}

func WithStdin(r io.Reader) Option {
	return func(vm *VM) { vm.stdin = r }
}

// WithMaxCallDepth bounds nested calls; deeper calls raise "stack overflow".
func WithMaxCallDepth(depth int) Option {
	return func(vm *VM) {
		if depth > 0 {
			vm.maxCallDepth = depth
		}
	}
}

// WithCompatFallbacks registers setfallback.
func WithCompatFallbacks(enabled bool) Option {
	return func(vm *VM) { vm.compatFallbacks = enabled }
}

// WithDebugBuiltins registers totalmem.
func WithDebugBuiltins(enabled bool) Option {
	return func(vm *VM) { vm.debugBuiltins = enabled }
}

// WithGCTuning lets collectgarbage(limit) set the process-wide GC percent.
// When disabled the limit is ignored and only a collection runs.
func WithGCTuning(enabled bool) Option {
	return func(vm *VM) { vm.gcTuning = enabled }
}

// New creates a runtime with the builtin library installed.
func New(opts ...Option) *VM {
	vm := &VM{
		stack:        make([]Value, 0, 256),
		globals:      newGlobalTable(),
		tagMethods:   make(map[tmKey]Value),
		placeholder:  &Userdata{tag: TagUserdata},
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		stdin:        os.Stdin,
		logger:       zerolog.Nop(),
		maxCallDepth: DefaultMaxCallDepth,
		gcTuning:     true,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.errorMethod = vm.newDefaultErrorMethod()
	vm.registerBuiltins()
	return vm
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack[len(vm.stack)-1] = nil
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) truncate(n int) {
	clear(vm.stack[n:])
	vm.stack = vm.stack[:n]
}

// call invokes fn with args and returns every result. Errors unwind as
// panics; see pcall.
func (vm *VM) call(fn Value, args []Value) []Value {
	funcIdx := len(vm.stack)
	vm.push(fn)
	vm.stack = append(vm.stack, args...)
	vm.callAt(funcIdx, bytecode.MultRet)
	results := append([]Value(nil), vm.stack[funcIdx:]...)
	vm.truncate(funcIdx)
	return results
}

// pcall is call with the error boundary: a raised script error restores
// the stack, frames and depth to their state at entry and is returned.
func (vm *VM) pcall(fn Value, args []Value) (results []Value, se *errors.ScriptError) {
	stackTop, frameCount, depth := len(vm.stack), len(vm.frames), vm.depth
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(*errors.ScriptError)
			if !ok {
				panic(r)
			}
			vm.truncate(stackTop)
			clear(vm.frames[frameCount:])
			vm.frames = vm.frames[:frameCount]
			vm.depth = depth
			vm.notify(err)
			results, se = nil, err
		}
	}()
	return vm.call(fn, args), nil
}

// callAt calls the function at stack[funcIdx] with the values above it
// as arguments. Results replace the function and its arguments, adjusted
// to nresults unless that is MultRet.
func (vm *VM) callAt(funcIdx, nresults int) {
	limit := vm.maxCallDepth
	if vm.handlingError {
		limit += errorMethodHeadroom
	}
	if vm.depth >= limit {
		vm.runtimeError("stack overflow")
	}

	switch f := vm.stack[funcIdx].(type) {
	case *Function:
		vm.depth++
		vm.callScript(f, funcIdx)
		vm.depth--
	case *NativeFunction:
		vm.depth++
		args := append([]Value(nil), vm.stack[funcIdx+1:]...)
		vm.truncate(funcIdx)
		results, err := f.Function(args)
		if err != nil {
			vm.raise(err)
		}
		vm.stack = append(vm.stack, results...)
		vm.depth--
	default:
		tm := vm.tagMethod(vm.TagOf(f), EventFunction)
		if !isFunction(tm) {
			vm.runtimeError("call expression not a function")
		}
		// the handler receives the called value as its first argument
		vm.push(nil)
		copy(vm.stack[funcIdx+1:], vm.stack[funcIdx:len(vm.stack)-1])
		vm.stack[funcIdx] = tm
		vm.callAt(funcIdx, nresults)
		return
	}
	vm.adjustResults(funcIdx, nresults)
}

func (vm *VM) adjustResults(funcIdx, nresults int) {
	if nresults == bytecode.MultRet {
		return
	}
	want := funcIdx + nresults
	if len(vm.stack) > want {
		vm.truncate(want)
	}
	for len(vm.stack) < want {
		vm.push(nil)
	}
}

// callScript sets up the frame of a script function: arguments are
// adjusted to the parameter count and, for vararg functions, the extra
// arguments are collected into the table local arg with field n.
func (vm *VM) callScript(f *Function, funcIdx int) {
	chunk := f.Chunk
	base := funcIdx + 1
	nargs := len(vm.stack) - base

	var extra *Table
	if chunk.IsVararg {
		extra = NewTable()
		n := 0
		for i := chunk.NumParams; i < nargs; i++ {
			n++
			extra.Set(float64(n), vm.stack[base+i])
		}
		extra.Set("n", float64(n))
	}
	if nargs > chunk.NumParams {
		vm.truncate(base + chunk.NumParams)
	}
	for len(vm.stack) < base+chunk.NumParams {
		vm.push(nil)
	}
	if extra != nil {
		vm.push(extra)
	}

	first := vm.execute(f, base)
	n := copy(vm.stack[funcIdx:], vm.stack[first:])
	vm.truncate(funcIdx + n)
}

func (vm *VM) readByte(fr *frame) int {
	b := fr.fn.Chunk.Code[fr.ip]
	fr.ip++
	return int(b)
}

func (vm *VM) readShort(fr *frame) int {
	code := fr.fn.Chunk.Code
	v := int(code[fr.ip])<<8 | int(code[fr.ip+1])
	fr.ip += 2
	return v
}

// execute runs f's code in a frame starting at base and returns the stack
// index of its first result; results run to the top of the stack.
func (vm *VM) execute(f *Function, base int) int {
	fr := &frame{fn: f, base: base}
	vm.frames = append(vm.frames, fr)
	chunk := f.Chunk

	for {
		op := bytecode.OpCode(chunk.Code[fr.ip])
		fr.ip++

		switch op {
		case bytecode.OpConstant:
			vm.push(chunk.Constants[vm.readShort(fr)])

		case bytecode.OpNil:
			for n := vm.readByte(fr); n > 0; n-- {
				vm.push(nil)
			}

		case bytecode.OpPop:
			vm.truncate(len(vm.stack) - vm.readByte(fr))

		case bytecode.OpGetLocal:
			vm.push(vm.stack[base+vm.readByte(fr)])

		case bytecode.OpSetLocal:
			slot := vm.readByte(fr)
			vm.stack[base+slot] = vm.pop()

		case bytecode.OpGetGlobal:
			name := chunk.Constants[vm.readShort(fr)].(string)
			vm.push(vm.getGlobal(name))

		case bytecode.OpSetGlobal:
			name := chunk.Constants[vm.readShort(fr)].(string)
			vm.setGlobal(name, vm.pop())

		case bytecode.OpGetTable:
			key := vm.pop()
			t := vm.pop()
			vm.push(vm.getTable(t, key))

		case bytecode.OpSetTableAt:
			slot := base + vm.readByte(fr)
			v := vm.pop()
			vm.setTable(vm.stack[slot], vm.stack[slot+1], v)

		case bytecode.OpNewTable:
			vm.push(NewTable())

		case bytecode.OpSetField:
			t := vm.stack[base+vm.readByte(fr)].(*Table)
			v := vm.pop()
			key := vm.pop()
			if err := t.Set(key, v); err != nil {
				vm.raise(err)
			}

		case bytecode.OpSetList:
			slot := base + vm.readByte(fr)
			start := vm.readShort(fr)
			t := vm.stack[slot].(*Table)
			for i, v := range vm.stack[slot+1:] {
				t.Set(float64(start+i), v)
			}
			vm.truncate(slot + 1)

		case bytecode.OpSelf:
			name := chunk.Constants[vm.readShort(fr)].(string)
			obj := vm.pop()
			vm.push(vm.getTable(obj, name))
			vm.push(obj)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpPow:
			b := vm.pop()
			a := vm.pop()
			vm.push(vm.arith(op, a, b))

		case bytecode.OpNegate:
			vm.push(vm.negate(vm.pop()))

		case bytecode.OpConcat:
			b := vm.pop()
			a := vm.pop()
			vm.push(vm.concat(a, b))

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(boolValue(rawEqual(a, b)))

		case bytecode.OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(boolValue(!rawEqual(a, b)))

		case bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater, bytecode.OpGreaterEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(vm.compare(op, a, b))

		case bytecode.OpNot:
			vm.push(boolValue(IsFalse(vm.pop())))

		case bytecode.OpJump:
			offset := vm.readShort(fr)
			fr.ip += offset

		case bytecode.OpJumpIfFalse:
			offset := vm.readShort(fr)
			if IsFalse(vm.pop()) {
				fr.ip += offset
			}

		case bytecode.OpJumpIfTrue:
			offset := vm.readShort(fr)
			if !IsFalse(vm.pop()) {
				fr.ip += offset
			}

		case bytecode.OpAndJump:
			offset := vm.readShort(fr)
			if IsFalse(vm.stack[len(vm.stack)-1]) {
				fr.ip += offset
			} else {
				vm.pop()
			}

		case bytecode.OpOrJump:
			offset := vm.readShort(fr)
			if !IsFalse(vm.stack[len(vm.stack)-1]) {
				fr.ip += offset
			} else {
				vm.pop()
			}

		case bytecode.OpLoop:
			offset := vm.readShort(fr)
			fr.ip -= offset

		case bytecode.OpCall:
			slot := vm.readByte(fr)
			nresults := vm.readByte(fr)
			vm.callAt(base+slot, nresults)

		case bytecode.OpClosure:
			proto := chunk.Constants[vm.readShort(fr)].(*bytecode.Chunk)
			vm.push(&Function{Chunk: proto})

		case bytecode.OpReturn:
			first := base + vm.readByte(fr)
			vm.frames[len(vm.frames)-1] = nil
			vm.frames = vm.frames[:len(vm.frames)-1]
			return first

		default:
			vm.runtimeError("unknown opcode %d", op)
		}
	}
}
