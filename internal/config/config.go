package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the server settings.
type Config struct {
	Addr string `mapstructure:"addr"`
	// ThinkDelay postpones the engine reply for display only.
	ThinkDelay  time.Duration `mapstructure:"think_delay"`
	LogLevel    string        `mapstructure:"log_level"`
	Development bool          `mapstructure:"development"`
}

// EnvPrefix prefixes environment overrides, e.g. TTT_ADDR.
const EnvPrefix = "TTT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("think_delay", 300*time.Millisecond)
	v.SetDefault("log_level", "info")
	v.SetDefault("development", false)
}

// Setup reads cfgPath when it is not empty, then applies TTT_* environment
// overrides on top of the defaults.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ThinkDelay < 0 {
		return nil, fmt.Errorf("think_delay must not be negative, got %s", cfg.ThinkDelay)
	}
	return &cfg, nil
}
