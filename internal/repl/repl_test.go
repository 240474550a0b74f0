package repl

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisp/internal/vm"
)

func TestRunPiped(t *testing.T) {
	input := strings.Join([]string{
		"x = 1",
		"return x + 1, 'a'",
		"function f()",
		"  return 5",
		"end",
		"= f()",
		"error('oops')",
		"print(x)",
		"exit",
		"print('unreachable')",
	}, "\n")

	var out, errOut bytes.Buffer
	machine := vm.New(vm.WithStdout(&out), vm.WithStderr(&errOut))
	r := New(machine, Options{In: strings.NewReader(input), Out: &out})
	require.NoError(t, r.Run())

	assert.Equal(t, "2\ta\n5\n1\n", out.String())
	assert.Equal(t, "wisp: oops\n", errOut.String())
}

func TestUnterminatedChunkAtEOF(t *testing.T) {
	var out, errOut bytes.Buffer
	machine := vm.New(vm.WithStdout(&out), vm.WithStderr(&errOut))
	r := New(machine, Options{In: strings.NewReader("while 1 do"), Out: &out})
	require.NoError(t, r.Run())
	assert.Contains(t, errOut.String(), "near '<eof>'")
}

func TestReadChunk(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"single line", []string{"x = 1"}, "x = 1"},
		{"function", []string{"function f()", "end"}, "function f()\nend"},
		{"long string", []string{"s = [[a", "b]]"}, "s = [[a\nb]]"},
		{"real error stops", []string{"x = = 1", "ignored"}, "x = = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &plainPrompter{scanner: newScanner(tt.lines)}
			got, err := readChunk(in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newScanner(lines []string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
}
