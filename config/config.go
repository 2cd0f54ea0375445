package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AdminIDsRaw string `mapstructure:"ADMIN_IDS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// When false every collection is priced at zero.
	EnableCollections bool `mapstructure:"ENABLE_COLLECTIONS"`

	DBMaxOpenConns int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int `mapstructure:"DB_MAX_IDLE_CONNS"`

	AccessKeyMaxAttempts int `mapstructure:"ACCESS_KEY_MAX_ATTEMPTS"`
	ClaimMaxAttempts     int `mapstructure:"CLAIM_MAX_ATTEMPTS"`
	KeyCacheSize         int `mapstructure:"KEY_CACHE_SIZE"`

	AdminIDs []int64 `mapstructure:"-"`
}

var defaults = map[string]interface{}{
	"DATABASE_URL":            "sqlite:///aura_pro.db",
	"ADMIN_IDS":               "",
	"LOG_LEVEL":               "debug",
	"ENABLE_COLLECTIONS":      true,
	"DB_MAX_OPEN_CONNS":       20,
	"DB_MAX_IDLE_CONNS":       5,
	"ACCESS_KEY_MAX_ATTEMPTS": 8,
	"CLAIM_MAX_ATTEMPTS":      16,
	"KEY_CACHE_SIZE":          1024,
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	cfg := Config{
		DatabaseURL:          defaults["DATABASE_URL"].(string),
		LogLevel:             defaults["LOG_LEVEL"].(string),
		EnableCollections:    defaults["ENABLE_COLLECTIONS"].(bool),
		DBMaxOpenConns:       defaults["DB_MAX_OPEN_CONNS"].(int),
		DBMaxIdleConns:       defaults["DB_MAX_IDLE_CONNS"].(int),
		AccessKeyMaxAttempts: defaults["ACCESS_KEY_MAX_ATTEMPTS"].(int),
		ClaimMaxAttempts:     defaults["CLAIM_MAX_ATTEMPTS"].(int),
		KeyCacheSize:         defaults["KEY_CACHE_SIZE"].(int),
	}
	return cfg
}

// LoadConfig reads an env file and the process environment. A missing file is
// not an error.
func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(absPath)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	config.AdminIDs, err = parseAdminIDs(config.AdminIDsRaw)
	if err != nil {
		return config, err
	}

	return config, nil
}

func (c Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
