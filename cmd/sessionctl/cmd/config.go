package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	goSession "github.com/MrEthical07/goSession"
)

const (
	storeSQLite = "sqlite"
	storeRedis  = "redis"
	storeMemory = "memory"
)

// Settings is the sessionctl config file.
type Settings struct {
	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`
	Store struct {
		Driver    string        `mapstructure:"driver"`
		Path      string        `mapstructure:"path"`
		RedisAddr string        `mapstructure:"redis_addr"`
		RedisTTL  time.Duration `mapstructure:"redis_ttl"`
		KeyPrefix string        `mapstructure:"key_prefix"`
	} `mapstructure:"store"`
	Offline struct {
		MaxStaleness        time.Duration `mapstructure:"max_staleness"`
		RejectExpiredTokens bool          `mapstructure:"reject_expired_tokens"`
	} `mapstructure:"offline"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// initViper wires the config file and SESSIONCTL_* environment overrides.
func initViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("sessionctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SESSIONCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()
}

func setDefaults() {
	defaults := goSession.DefaultConfig()
	home, _ := os.UserHomeDir()

	viper.SetDefault("api.base_url", defaults.API.BaseURL)
	viper.SetDefault("api.timeout", defaults.API.Timeout)
	viper.SetDefault("store.driver", storeSQLite)
	viper.SetDefault("store.path", filepath.Join(home, ".sessionctl", "session.db"))
	viper.SetDefault("store.redis_addr", "localhost:6379")
	viper.SetDefault("store.redis_ttl", time.Duration(0))
	viper.SetDefault("store.key_prefix", defaults.Session.KeyPrefix)
	viper.SetDefault("offline.max_staleness", time.Duration(0))
	viper.SetDefault("offline.reject_expired_tokens", false)
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("metrics.enabled", true)
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	for _, dir := range []string{".", filepath.Join(home, ".sessionctl")} {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "sessionctl"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func loadSettings() (*Settings, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	switch s.Store.Driver {
	case storeSQLite, storeRedis, storeMemory:
	default:
		return nil, fmt.Errorf("store.driver must be one of sqlite, redis, memory; got %q", s.Store.Driver)
	}
	return &s, nil
}

// managerConfig maps Settings onto the library configuration.
func (s *Settings) managerConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.API.BaseURL = s.API.BaseURL
	cfg.API.Timeout = s.API.Timeout
	cfg.API.UserAgent = "sessionctl/" + Version
	cfg.Session.KeyPrefix = s.Store.KeyPrefix
	cfg.Offline.MaxStaleness = s.Offline.MaxStaleness
	cfg.Offline.RejectExpiredTokens = s.Offline.RejectExpiredTokens
	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = s.Metrics.Enabled
	return cfg
}
