package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().MulticastAddress, cfg.MulticastAddress)
	assert.Equal(t, Defaults().MaxLeaseSec, cfg.MaxLeaseSec)
}

func TestLoadFromYAMLFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "streamListenPort: 9999\nmaxLeaseSec: 900\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.StreamListenPort)
	assert.Equal(t, 900, cfg.MaxLeaseSec)
	// Untouched fields keep their defaults.
	assert.Equal(t, Defaults().MulticastAddress, cfg.MulticastAddress)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("UPNP_STREAMLISTENPORT", "7000")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.StreamListenPort)
}

func TestValidateRejectsBadLeaseBounds(t *testing.T) {
	cfg := Defaults()
	cfg.MinLeaseSec = 100
	cfg.MaxLeaseSec = 50
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOversizedSearchMX(t *testing.T) {
	cfg := Defaults()
	cfg.SearchMX = 10 * time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositivePorts(t *testing.T) {
	cfg := Defaults()
	cfg.MulticastPort = 0
	assert.Error(t, cfg.Validate())
}
