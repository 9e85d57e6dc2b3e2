package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int      `env:"TEST_CFG_PORT" envDefault:"8080"`
	Host    string   `env:"TEST_CFG_HOST" envDefault:"localhost"`
	Debug   bool     `env:"TEST_CFG_DEBUG" envDefault:"false"`
	Origins []string `env:"TEST_CFG_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, WithEnvironment(map[string]string{}))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_DEBUG", "true")
	t.Setenv("TEST_CFG_ORIGINS", "https://a.example,https://b.example")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
}

func TestLoad_WithEnvironmentMap(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, WithEnvironment(map[string]string{"TEST_CFG_HOST": "0.0.0.0"}))

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
}

func TestLoad_WithPrefix(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg,
		WithPrefix("SHOP_"),
		WithEnvironment(map[string]string{"SHOP_TEST_CFG_PORT": "7000", "TEST_CFG_PORT": "1"}),
	)

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestLoad_InvalidValue(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, WithEnvironment(map[string]string{"TEST_CFG_PORT": "not-a-number"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
