// Package config loads service configuration from an optional YAML
// file plus environment overrides. Environment always wins, so a
// containerized deploy needs no file at all.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port             string   `yaml:"port"`
	DatabaseURL      string   `yaml:"databaseUrl"`
	Migrate          bool     `yaml:"migrate"`
	RedisURL         string   `yaml:"redisUrl"`
	GoogleMapsAPIKey string   `yaml:"googleMapsApiKey"`
	GoogleMapsQPS    float64  `yaml:"googleMapsQps"`
	TimeBudgetMs     int      `yaml:"optimizeTimeBudgetMs"`
	SpeedKmh         float64  `yaml:"speedKmh"`
	DwellMinutes     *float64 `yaml:"dwellMinutes"`
}

// Load reads the file named by FIELDROUTE_CONFIG when set, then
// applies environment overrides.
func Load() (Config, error) {
	cfg := Config{Port: "8080", Migrate: true, GoogleMapsQPS: 10}
	if path := os.Getenv("FIELDROUTE_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("PORT", &cfg.Port)
	envStr("DATABASE_URL", &cfg.DatabaseURL)
	envStr("REDIS_URL", &cfg.RedisURL)
	envStr("GOOGLE_MAPS_API_KEY", &cfg.GoogleMapsAPIKey)
	envFloat("GOOGLE_MAPS_QPS", &cfg.GoogleMapsQPS)
	envInt("OPTIMIZE_TIME_BUDGET_MS", &cfg.TimeBudgetMs)
	envFloat("SPEED_KMH", &cfg.SpeedKmh)
	if v := os.Getenv("DWELL_MINUTES"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.DwellMinutes = &f
		}
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		cfg.Migrate = v != "false"
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
