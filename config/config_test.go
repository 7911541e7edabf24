package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xqueue"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "zmq", cfg.Transport.Name)
	assert.Equal(t, xqueue.DefaultProduceTimeout, cfg.Producer.Timeout)
	assert.True(t, cfg.Consumer.FilterExpired)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport:
  name: redis-streams
  options:
    addr: redis:6379
    block: 250ms
producer:
  address: jobs.front
  timeout: 50ms
consumer:
  address: jobs.back
  filter_expired: false
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis-streams", cfg.Transport.Name)
	assert.Equal(t, "redis:6379", cfg.Transport.Options["addr"])
	assert.Equal(t, "250ms", cfg.Transport.Options["block"])
	assert.Equal(t, "jobs.front", cfg.Producer.Address)
	assert.Equal(t, 50*time.Millisecond, cfg.Producer.Timeout)
	assert.False(t, cfg.Consumer.FilterExpired)
	assert.Equal(t, 5*time.Second, cfg.Consumer.AckTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("producer: [oops"), 0o644))
	_, err := Load(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log:\n  level: loud\n"), 0o644))
	_, err = Load(invalid)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty transport", func(c *Config) { c.Transport.Name = "" }},
		{"empty producer address", func(c *Config) { c.Producer.Address = "" }},
		{"zero produce timeout", func(c *Config) { c.Producer.Timeout = 0 }},
		{"empty consumer address", func(c *Config) { c.Consumer.Address = "" }},
		{"negative ack timeout", func(c *Config) { c.Consumer.AckTimeout = -time.Second }},
		{"unknown level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Transport.Name = "memory"
	cfg.Producer.Timeout = time.Second
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Transport.Name, got.Transport.Name)
	assert.Equal(t, time.Second, got.Producer.Timeout)
}
