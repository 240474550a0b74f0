package vm

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(t *testing.T, tbl *Table) []Value {
	t.Helper()
	var out []Value
	var k Value
	for {
		next, _, ok, err := tbl.Next(k)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, next)
		k = next
	}
}

func TestTableSetGet(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set(1.0, "one"))
	require.NoError(t, tbl.Set("k", 2.0))
	assert.Equal(t, "one", tbl.Get(1.0))
	assert.Equal(t, 2.0, tbl.GetString("k"))
	assert.Nil(t, tbl.Get("missing"))
	assert.Nil(t, tbl.Get(nil))
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, TagTable, tbl.Tag())

	require.NoError(t, tbl.Set("k", nil))
	assert.Equal(t, 1, tbl.Len())
	assert.Nil(t, tbl.Get("k"))

	assert.ErrorIs(t, tbl.Set(nil, 1.0), errNilIndex)
	assert.ErrorIs(t, tbl.Set(math.NaN(), 1.0), errNaNIndex)
}

func TestTableTraversalOrder(t *testing.T) {
	tbl := NewTable()
	for _, k := range []Value{"c", 1.0, "a", 2.0} {
		require.NoError(t, tbl.Set(k, 1.0))
	}
	if diff := cmp.Diff([]Value{"c", 1.0, "a", 2.0}, keys(t, tbl)); diff != "" {
		t.Errorf("traversal mismatch (-want +got):\n%s", diff)
	}

	_, _, _, err := tbl.Next("nope")
	assert.ErrorIs(t, err, errBadNext)
}

func TestTableDeleteDuringTraversal(t *testing.T) {
	tbl := NewTable()
	for i := 1; i <= 20; i++ {
		require.NoError(t, tbl.Set(float64(i), float64(i)))
	}
	var visited int
	var k Value
	for {
		next, _, ok, err := tbl.Next(k)
		require.NoError(t, err)
		if !ok {
			break
		}
		visited++
		require.NoError(t, tbl.Set(next, nil))
		k = next
	}
	assert.Equal(t, 20, visited)
	assert.Equal(t, 0, tbl.Len())
}

func TestTableCompaction(t *testing.T) {
	tbl := NewTable()
	for i := 1; i <= 16; i++ {
		require.NoError(t, tbl.Set(float64(i), float64(i)))
	}
	for i := 1; i <= 12; i++ {
		require.NoError(t, tbl.Set(float64(i), nil))
	}
	require.NoError(t, tbl.Set("new", 1.0))

	if diff := cmp.Diff([]Value{13.0, 14.0, 15.0, 16.0, "new"}, keys(t, tbl)); diff != "" {
		t.Errorf("keys after compaction (-want +got):\n%s", diff)
	}
	assert.Equal(t, 16.0, tbl.Get(16.0))
	assert.Equal(t, 5, tbl.Len())
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   Value
		want float64
		ok   bool
	}{
		{2.5, 2.5, true},
		{"10", 10, true},
		{" 10 ", 10, true},
		{"1e3", 1000, true},
		{"-4", -4, true},
		{"0x10", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{NewTable(), 0, false},
	}
	for _, tt := range tests {
		got, ok := ToNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "ToNumber(%v)", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "ToNumber(%v)", tt.in)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		1:            "1",
		-2.5:         "-2.5",
		1e15:         "1e+15",
		0.1:          "0.1",
		1.0 / 3:      "0.33333333333333",
		math.Inf(1):  "inf",
		math.Inf(-1): "-inf",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in))
	}
	assert.Equal(t, "nan", FormatNumber(math.NaN()))
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{nil, "nil"},
		{1.0, "number"},
		{"s", "string"},
		{NewTable(), "table"},
		{&Function{}, "function"},
		{&NativeFunction{}, "cfunction"},
		{&Userdata{}, "userdata"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeName(tt.v))
	}
}
