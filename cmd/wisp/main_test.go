package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalFlags(t *testing.T) {
	tests := []struct {
		args   []string
		rest   []string
		config string
		stats  bool
	}{
		{[]string{"run", "a.ws"}, []string{"run", "a.ws"}, "", false},
		{[]string{"--config", "w.yaml", "repl"}, []string{"repl"}, "w.yaml", false},
		{[]string{"run", "--stats", "a.ws", "--config", "c.yaml"}, []string{"run", "a.ws"}, "c.yaml", true},
		{[]string{"--config"}, []string{"--config"}, "", false},
	}
	for _, tt := range tests {
		rest, config, stats := globalFlags(tt.args)
		if diff := cmp.Diff(tt.rest, rest); diff != "" {
			t.Errorf("globalFlags(%v) rest (-want +got):\n%s", tt.args, diff)
		}
		assert.Equal(t, tt.config, config)
		assert.Equal(t, tt.stats, stats)
	}
}

func TestCheckAndRun(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.ws")
	bad := filepath.Join(dir, "bad.ws")
	require.NoError(t, os.WriteFile(good, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("local y = 1 function f() return y end\n"), 0o644))

	assert.Equal(t, 0, checkSyntax(good))
	assert.Equal(t, 1, checkSyntax(bad))
	assert.Equal(t, 1, checkSyntax(filepath.Join(dir, "missing.ws")))

	assert.Equal(t, 0, run([]string{"run", good}))
	assert.Equal(t, 1, run([]string{"run", bad}))
	assert.Equal(t, 2, run([]string{"run"}))
	assert.Equal(t, 0, run([]string{"-e", "x = 1"}))
}
