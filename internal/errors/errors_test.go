package errors

import (
	"testing"

	pkgerrors "github.com/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		position int
		function string
		detail   string
		want     string
	}{
		{"with detail", 1, "settag", "table expected", "bad argument #1 to 'settag' (table expected)"},
		{"without detail", 2, "setglobal", "", "bad argument #2 to 'setglobal'"},
		{"whole list", 0, "rawsettable", "", "bad arguments to 'rawsettable'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewArgumentError(tt.position, tt.function, tt.detail)
			assert.Equal(t, ArgumentError, err.Type)
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewRuntimeError("unexpected type at arithmetic operation").At("main.ws", 3)
	err.AddStackFrame("f", "main.ws", 3)

	out := err.Error()
	assert.Contains(t, out, "RuntimeError: unexpected type at arithmetic operation")
	assert.Contains(t, out, "at main.ws:3")
	assert.Contains(t, out, "at f (main.ws:3)")
}

func TestAtKeepsFirstLocation(t *testing.T) {
	err := NewUserError("boom").At("a", 1).At("b", 2)
	require.Equal(t, SourceLocation{File: "a", Line: 1}, err.Location)
}

func TestAs(t *testing.T) {
	var err error = NewSyntaxError("unexpected symbol", "x", 1)
	se, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, SyntaxError, se.Type)

	wrapped := pkgerrors.Wrap(err, "loading chunk")
	se, ok = As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "unexpected symbol", se.Message)

	_, ok = As(pkgerrors.New("plain"))
	assert.False(t, ok)
}
