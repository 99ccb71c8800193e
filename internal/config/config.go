// Package config loads the service configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// Load builds the configuration for the tier named by SCALYSIS_TIER (or the
// file's tier key), overlays the YAML file at path when path is non-empty,
// then applies SCALYSIS_* environment overrides.
func Load(path string) (*domain.Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	tier, err := resolveTier(data)
	if err != nil {
		return nil, err
	}

	cfg := domain.DefaultConfig()
	if tier == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveTier(data []byte) (domain.Tier, error) {
	if v := os.Getenv("SCALYSIS_TIER"); v != "" {
		return domain.Tier(strings.ToLower(v)), nil
	}
	var head struct {
		Tier domain.Tier `yaml:"tier"`
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &head); err != nil {
			return "", fmt.Errorf("parse config: %w", err)
		}
	}
	return head.Tier, nil
}

// Validate checks the values a request could otherwise fall back to.
func Validate(cfg *domain.Config) error {
	switch cfg.Tier {
	case domain.TierCommunity, domain.TierPro:
	default:
		return fmt.Errorf("invalid tier %q", cfg.Tier)
	}
	if err := validator.New().Struct(cfg.Simulation.Economics); err != nil {
		return fmt.Errorf("invalid simulation economics: %w", err)
	}
	if cfg.Simulation.DefaultCutoff < 0 || cfg.Simulation.DefaultCutoff > 100 {
		return fmt.Errorf("default cutoff %d outside 0..100", cfg.Simulation.DefaultCutoff)
	}
	if cfg.Simulation.SearchLimit < 0 || cfg.Simulation.SearchLimit > 100 {
		return fmt.Errorf("search limit %d outside 0..100", cfg.Simulation.SearchLimit)
	}
	return nil
}

func applyEnv(cfg *domain.Config) {
	if v := os.Getenv("SCALYSIS_TIER"); v != "" {
		cfg.Tier = domain.Tier(strings.ToLower(v))
	}
	if v := os.Getenv("SCALYSIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("SCALYSIS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("SCALYSIS_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("SCALYSIS_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("SCALYSIS_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("SCALYSIS_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("SCALYSIS_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SCALYSIS_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("SCALYSIS_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("SCALYSIS_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}
	if v := os.Getenv("SHOPIFY_API_KEY"); v != "" {
		cfg.Shopify.APIKey = v
	}
	if v := os.Getenv("SHOPIFY_API_SECRET"); v != "" {
		cfg.Shopify.APISecret = v
	}
	if v := os.Getenv("SCALYSIS_SHOPIFY_BASE_URL"); v != "" {
		cfg.Shopify.BaseURL = v
	}
	if v := os.Getenv("SCALYSIS_SHOPIFY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Shopify.Timeout = d
		}
	}
	if v := os.Getenv("SCALYSIS_ASYNC_WORKER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Worker.Enabled = b
		}
	}
	if v := os.Getenv("SCALYSIS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCALYSIS_DEBUG"); v == "true" {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv("SCALYSIS_TRACING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
