package launch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEngineConfig(t *testing.T) {
	cfg, err := DecodeEngineConfig(strings.NewReader(`
command: ["m3bp-exec", "--threads", "8"]
env:
  M3BP_LOG: info
workdir: /var/lib/engine
`))
	require.NoError(t, err)
	assert.Equal(t, &EngineConfig{
		Command: []string{"m3bp-exec", "--threads", "8"},
		Env:     map[string]string{"M3BP_LOG": "info"},
		WorkDir: "/var/lib/engine",
	}, cfg)
}

func TestDecodeEngineConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "", "engine config is empty"},
		{"unknown field", "command: [x]\nthreads: 4\n", "field threads not found"},
		{"no command", "workdir: /tmp\n", "command is required"},
		{"empty argument", "command: [x, \"\"]\n", "command[1] is empty"},
		{"bad yaml", "command: [x\n", "parsing engine config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEngineConfig(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeEngineConfig_MockNeedsNoCommand(t *testing.T) {
	cfg, err := DecodeEngineConfig(strings.NewReader("mock: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Mock)
}

func TestLoadEngineConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("command: [engine]\n"), 0o644))

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"engine"}, cfg.Command)

	_, err = LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading engine config")
}
