package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().MountPoint, cfg.MountPoint)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xearthlayer.toml")
	toml := `
mount_point = "/mnt/xplane"
scenery_root = "/opt/scenery"
cache_root = "/var/cache/xearthlayer"

[[providers]]
id = "GO2"
url_template = "https://tiles.example/{z}/{x}/{y}.jpg"
format = "BC3"
mip_count = 6
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/mnt/xplane", cfg.MountPoint)
	provider, ok := cfg.ProviderByID("GO2")
	require.True(t, ok)
	assert.Equal(t, "BC3", provider.Format)
	assert.Equal(t, 6, provider.MipCount)
}

func TestValidateRejectsDuplicateProviders(t *testing.T) {
	cfg := Default()
	cfg.Providers = append(cfg.Providers, cfg.Providers[0])
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadFormat(t *testing.T) {
	cfg := Default()
	cfg.Providers[0].Format = "RGBA"
	assert.Error(t, cfg.Validate())
}
