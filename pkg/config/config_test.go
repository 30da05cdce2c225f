package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"qpexec/pkg/logging"
	"qpexec/pkg/storage/page"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("QPEXECTEST", "")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QPEXECTEST_NUM_BUFFERS", "5")
	t.Setenv("QPEXECTEST_PAGE_SIZE", "1024")
	t.Setenv("QPEXECTEST_COMPRESSION", "zstd")
	t.Setenv("QPEXECTEST_LOG_LEVEL", "debug")

	cfg, err := Load("QPEXECTEST", "")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.NumBuffers)
	require.Equal(t, 1024, cfg.PageSize)
	require.Equal(t, page.CompressionZstd, cfg.CompressionCodec())
	require.Equal(t, logging.LevelDebug, cfg.LoggingConfig().Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_buffers: 12\ncompression: snappy\nlog:\n  format: json\n"), 0o600))
	t.Setenv("QPEXECTEST_NUM_BUFFERS", "4")

	cfg, err := Load("QPEXECTEST", path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.NumBuffers, "environment wins over file")
	require.Equal(t, "snappy", cfg.Compression)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	_, err := Load("QPEXECTEST", filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ExecConfig)
	}{
		{"too few buffers", func(c *ExecConfig) { c.NumBuffers = 2 }},
		{"zero page size", func(c *ExecConfig) { c.PageSize = 0 }},
		{"unknown codec", func(c *ExecConfig) { c.Compression = "brotli" }},
		{"empty temp dir", func(c *ExecConfig) { c.TempDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("invalid env rejected by Load", func(t *testing.T) {
		t.Setenv("QPEXECTEST_NUM_BUFFERS", "1")
		_, err := Load("QPEXECTEST", "")
		require.Error(t, err)
	})
}
