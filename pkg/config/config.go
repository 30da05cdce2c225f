// Package config loads execution settings from defaults, an optional config
// file and prefixed environment variables.
package config

import (
	"io/fs"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"qpexec/pkg/logging"
	"qpexec/pkg/storage/page"
)

// DefaultEnvPrefix is the environment prefix used by Load when none is given,
// e.g. QPEXEC_NUM_BUFFERS.
const DefaultEnvPrefix = "QPEXEC"

// ExecConfig holds the settings shared by every operator of a query.
type ExecConfig struct {
	// PageSize is the page byte size used to derive batch capacity.
	PageSize int `mapstructure:"page_size"`

	// NumBuffers is the default buffer budget B given to operators that are
	// not constructed with an explicit one.
	NumBuffers int `mapstructure:"num_buffers"`

	// TempDir is the parent directory of per-query spill directories.
	TempDir string `mapstructure:"temp_dir"`

	// Compression names the codec for spilled pages: none, snappy, zstd or lz4.
	Compression string `mapstructure:"compression"`

	Log LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Default returns the built-in configuration.
func Default() *ExecConfig {
	return &ExecConfig{
		PageSize:    page.DefaultPageSize,
		NumBuffers:  8,
		TempDir:     os.TempDir(),
		Compression: string(page.CompressionNone),
		Log: LogConfig{
			Level:  string(logging.LevelInfo),
			Format: "text",
		},
	}
}

// Validate checks ranges and codec names.
func (c *ExecConfig) Validate() error {
	if c.PageSize <= 0 {
		return errors.Newf("page_size must be positive, got %d", c.PageSize)
	}
	if c.NumBuffers < 3 {
		return errors.Newf("num_buffers must be at least 3, got %d", c.NumBuffers)
	}
	if c.TempDir == "" {
		return errors.New("temp_dir must not be empty")
	}
	if _, err := page.ParseCompression(c.Compression); err != nil {
		return err
	}
	return nil
}

// CompressionCodec returns the parsed compression setting.
func (c *ExecConfig) CompressionCodec() page.Compression {
	codec, err := page.ParseCompression(c.Compression)
	if err != nil {
		return page.CompressionNone
	}
	return codec
}

// LoggingConfig converts the log section into a logging.Config.
func (c *ExecConfig) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      logging.LogLevel(strings.ToUpper(c.Log.Level)),
		OutputPath: c.Log.Output,
		Format:     c.Log.Format,
	}
}

// Load resolves configuration in increasing precedence: defaults, the file
// at path (optional; "" skips it), then environment variables named
// PREFIX_KEY with nested keys joined by underscores (PREFIX_LOG_LEVEL).
func Load(prefix, path string) (*ExecConfig, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrapf(err, "reading config file %s", path)
			}
		}
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &ExecConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d *ExecConfig) {
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("num_buffers", d.NumBuffers)
	v.SetDefault("temp_dir", d.TempDir)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
}
