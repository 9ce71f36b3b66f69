package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := newRunCmd().Flags()
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
registry:
  name: from-file
  max_entities: 500
frames: 7
parallel: true
`), 0o600))
	t.Setenv("SPARSECS_FRAMES", "9")

	cfg, err := loadConfig(file, testFlags(t, "--entities", "300"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Registry.Name)
	assert.Equal(t, 300, cfg.Registry.MaxEntities)
	assert.Equal(t, 9, cfg.Frames)
	assert.True(t, cfg.Parallel)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, err := loadConfig("", testFlags(t, "--entities", "0"))
	require.Error(t, err)

	_, err = loadConfig("", testFlags(t, "--profile", "block"))
	require.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestRunReport(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		cfg := defaultConfig()
		cfg.Registry.MaxEntities = 300
		cfg.Frames = 61
		cfg.Workers = 2
		cfg.Parallel = parallel

		var out bytes.Buffer
		require.NoError(t, run(context.Background(), cfg, &out))

		var rep report
		require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
		// Every fifth entity expires within 60 frames.
		assert.Equal(t, 60, rep.Despawned)
		assert.Equal(t, 240, rep.Alive)
		assert.Equal(t, 240, rep.Components["main.position"])
		assert.Zero(t, rep.Components["main.lifetime"])
	}
}
