package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "DATABASE_URL=sqlite:///cards.db\nADMIN_IDS=12, 34\nENABLE_COLLECTIONS=false\nCLAIM_MAX_ATTEMPTS=4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///cards.db", cfg.DatabaseURL)
	assert.Equal(t, []int64{12, 34}, cfg.AdminIDs)
	assert.False(t, cfg.EnableCollections)
	assert.Equal(t, 4, cfg.ClaimMaxAttempts)
	assert.Equal(t, 8, cfg.AccessKeyMaxAttempts)
	assert.True(t, cfg.IsAdmin(34))
	assert.False(t, cfg.IsAdmin(56))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.DatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, def.KeyCacheSize, cfg.KeyCacheSize)
	assert.True(t, cfg.EnableCollections)
	assert.Empty(t, cfg.AdminIDs)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_BadAdminIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_IDS=1,abc\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
