package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisp/internal/bytecode"
	"wisp/internal/errors"
)

func compile(t *testing.T, src string) *bytecode.Chunk {
	t.Helper()
	chunk, err := CompileSource(src, "test")
	require.NoError(t, err, "source: %s", src)
	return chunk
}

func ops(chunk *bytecode.Chunk) []bytecode.OpCode {
	var out []bytecode.OpCode
	for ip := 0; ip < len(chunk.Code); {
		op := bytecode.OpCode(chunk.Code[ip])
		out = append(out, op)
		ip += 1 + bytecode.OperandWidth(op)
	}
	return out
}

func TestCompileGlobalAssignment(t *testing.T) {
	chunk := compile(t, "x = 1")
	assert.Equal(t, []bytecode.OpCode{
		bytecode.OpConstant,
		bytecode.OpSetGlobal,
		bytecode.OpReturn,
	}, ops(chunk))
	assert.Contains(t, chunk.Constants, "x")
	assert.Contains(t, chunk.Constants, 1.0)
}

func TestCompileLocalsUseSlots(t *testing.T) {
	chunk := compile(t, "local a, b = 1\nb = a")
	assert.Equal(t, []bytecode.OpCode{
		bytecode.OpConstant,
		bytecode.OpNil,
		bytecode.OpGetLocal,
		bytecode.OpSetLocal,
		bytecode.OpReturn,
	}, ops(chunk))
	// main chunk returns from slot 2, above both locals
	assert.Equal(t, byte(2), chunk.Code[len(chunk.Code)-1])
}

func TestCompileCallStatementDiscardsResults(t *testing.T) {
	chunk := compile(t, "print(1, 2)")
	code := chunk.Code
	// CONSTANT name, CONSTANT, CONSTANT, CALL 0 0
	callAt := len(code) - 2 - 3
	require.Equal(t, bytecode.OpCall, bytecode.OpCode(code[callAt]))
	assert.Equal(t, byte(0), code[callAt+1])
	assert.Equal(t, byte(0), code[callAt+2])
}

func TestCompileLastArgumentIsMultRet(t *testing.T) {
	chunk := compile(t, "f(g())")
	var calls [][2]byte
	for ip := 0; ip < len(chunk.Code); {
		op := bytecode.OpCode(chunk.Code[ip])
		if op == bytecode.OpCall {
			calls = append(calls, [2]byte{chunk.Code[ip+1], chunk.Code[ip+2]})
		}
		ip += 1 + bytecode.OperandWidth(op)
	}
	require.Len(t, calls, 2)
	assert.Equal(t, [2]byte{1, bytecode.MultRet}, calls[0])
	assert.Equal(t, [2]byte{0, 0}, calls[1])
}

func TestCompileNestedFunction(t *testing.T) {
	chunk := compile(t, "function f(a, ...) return arg end")
	var proto *bytecode.Chunk
	for _, k := range chunk.Constants {
		if p, ok := k.(*bytecode.Chunk); ok {
			proto = p
		}
	}
	require.NotNil(t, proto)
	assert.Equal(t, "f", proto.Name)
	assert.Equal(t, 1, proto.NumParams)
	assert.True(t, proto.IsVararg)
	// arg lives in slot 1
	assert.Equal(t, []bytecode.OpCode{
		bytecode.OpGetLocal,
		bytecode.OpReturn,
		bytecode.OpReturn,
	}, ops(proto))
	assert.Equal(t, byte(1), proto.Code[1])
}

func TestCompileLargeConstructorFlushes(t *testing.T) {
	src := "t = {"
	for i := 0; i < 120; i++ {
		src += "1,"
	}
	src += "}"
	chunk := compile(t, src)
	n := 0
	for _, op := range ops(chunk) {
		if op == bytecode.OpSetList {
			n++
		}
	}
	assert.Equal(t, 3, n)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"outer local", "local x = 1\nfunction f() return x end", "outer scope"},
		{"outer local assignment", "function f(a) function g() a = 1 end end", "outer scope"},
		{"syntax", "x = = 1", "near"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource(tt.input, "test")
			require.Error(t, err)
			se, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.SyntaxError, se.Type)
			assert.Contains(t, se.Message, tt.want)
		})
	}
}

func TestDisassembleListsNestedFunctions(t *testing.T) {
	chunk := compile(t, "function f() return 1 end")
	var buf bytes.Buffer
	chunk.Disassemble(&buf)
	assert.Contains(t, buf.String(), "== main")
	assert.Contains(t, buf.String(), "== f")
	assert.Contains(t, buf.String(), "CLOSURE")
}
