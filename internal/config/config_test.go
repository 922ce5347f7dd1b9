package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Postgres struct {
		Addr string
		Name string
	}

	RateLimit struct {
		Limit  int
		Window time.Duration
	}
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
http:
  port: 8080
postgres:
  addr: localhost:5432
ratelimit:
  window: 2m
`), 0o600))

	t.Setenv("HTTP_PORT", "9090")

	var c testConfig
	c.Postgres.Name = "codexa"
	c.RateLimit.Limit = 100

	require.NoError(t, config.Load(file, &c))

	assert.Equal(t, int32(9090), c.HTTP.Port, "env should override file")
	assert.Equal(t, "localhost:5432", c.Postgres.Addr)
	assert.Equal(t, "codexa", c.Postgres.Name, "default should survive when file omits the key")
	assert.Equal(t, 100, c.RateLimit.Limit)
	assert.Equal(t, 2*time.Minute, c.RateLimit.Window)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("POSTGRES_ADDR", "db:5432")

	var c testConfig
	require.NoError(t, config.Load("", &c))
	assert.Equal(t, "db:5432", c.Postgres.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	var c testConfig
	err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), &c)
	require.Error(t, err)
}
