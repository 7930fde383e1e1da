// Package config loads the service configuration from file and environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the authoring core.
type Config struct {
	Listen string `mapstructure:"listen"`
	Log    struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Redis struct {
		// Addr empty means "run on the in-memory stores" (dev / tests).
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Guardrail struct {
		// Thresholds maps an intent category to its minimum confidence.
		Thresholds       map[string]float64 `mapstructure:"thresholds"`
		DefaultThreshold float64            `mapstructure:"default_threshold"`
	} `mapstructure:"guardrail"`
	Sync struct {
		// PageLimit caps the operations returned by one diff call.
		PageLimit int `mapstructure:"page_limit"`
	} `mapstructure:"sync"`
}

// Load reads config.yaml from the working directory (or ./config) and
// applies RAYTCHEL_-prefixed environment overrides. A missing file is not
// an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("RAYTCHEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("guardrail.default_threshold", 0.7)
	v.SetDefault("guardrail.thresholds", map[string]float64{
		"pricing":    0.8,
		"scheduling": 0.75,
	})
	v.SetDefault("sync.page_limit", 500)
}
