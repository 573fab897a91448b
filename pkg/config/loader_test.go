package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/config"
)

type appConfig struct {
	Addr     string        `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
	Driver   string        `env:"REALTIME_DRIVER" envDefault:"memory" validate:"oneof=memory redis"`
	Workers  int           `env:"WORKERS" envDefault:"4" validate:"min=1"`
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
}

type requiredConfig struct {
	Required string `env:"REQUIRED_VALUE,required"`
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		var cfg appConfig
		require.NoError(t, config.Load(&cfg, config.WithEnvironment(map[string]string{})))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "memory", cfg.Driver)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, time.Hour, cfg.Interval)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		var cfg appConfig
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{
			"HTTP_ADDR":       ":9090",
			"REALTIME_DRIVER": "redis",
			"WORKERS":         "8",
		}))
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, "redis", cfg.Driver)
		assert.Equal(t, 8, cfg.Workers)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		var cfg appConfig
		err := config.Load(&cfg,
			config.WithPrefix("SAASCORE_"),
			config.WithEnvironment(map[string]string{"SAASCORE_HTTP_ADDR": ":7000"}),
		)
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.Addr)
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Parallel()
		var cfg appConfig
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{"REALTIME_DRIVER": "kafka"}))
		require.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("missing required", func(t *testing.T) {
		t.Parallel()
		var cfg requiredConfig
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{}))
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		t.Parallel()
		var cfg *appConfig
		require.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("CONFIG_TEST_FILE_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CONFIG_TEST_FILE_VALUE") })

	type fileConfig struct {
		Value string `env:"CONFIG_TEST_FILE_VALUE"`
	}

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvFiles(file)))
	assert.Equal(t, "from-file", cfg.Value)
}

func TestMustLoad(t *testing.T) {
	t.Parallel()
	var cfg requiredConfig
	assert.Panics(t, func() {
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{}))
	})
}
