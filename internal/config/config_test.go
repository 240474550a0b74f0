package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wisp.yaml")
	doc := `
max_call_depth: 64
compat_fallbacks: true
log:
  level: debug
store:
  driver: sqlite
  dsn: file:test.db
server:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.MaxCallDepth = 64
	want.CompatFallbacks = true
	want.Log.Level = "debug"
	want.Store = StoreConfig{Driver: "sqlite", DSN: "file:test.db"}
	want.Server.Addr = ":9000"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(pkgerrors.Cause(err)))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty document", doc: ""},
		{name: "zero values keep defaults", doc: "max_call_depth: 0\nlog:\n  level: \"\"\n"},
		{name: "unknown key", doc: "colour: blue\n", wantErr: "field colour not found"},
		{name: "bad level", doc: "log:\n  level: loud\n", wantErr: "unknown level"},
		{name: "bad format", doc: "log:\n  format: xml\n", wantErr: "unknown format"},
		{name: "bad driver", doc: "store:\n  driver: oracle\n  dsn: x\n", wantErr: "unsupported driver"},
		{name: "driver without dsn", doc: "store:\n  driver: postgres\n", wantErr: "store.dsn is required"},
		{name: "negative depth", doc: "max_call_depth: -1\n", wantErr: "max_call_depth must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.doc)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Default(), cfg)
		})
	}
}
