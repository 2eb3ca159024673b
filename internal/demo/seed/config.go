package seed

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	RowsPerTable       int
	Equipment          int
	Seed               int64
	PublishAnnotations bool
	Reviewer           string
}

func DefaultConfig() Config {
	return Config{
		RowsPerTable:       180,
		Equipment:          6,
		Seed:               20260304,
		PublishAnnotations: true,
		Reviewer:           "mesquery-demo-seed",
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyInt(lookup, "MESQUERY_DEMO_ROWS", &cfg.RowsPerTable); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "MESQUERY_DEMO_EQUIPMENT", &cfg.Equipment); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "MESQUERY_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "MESQUERY_DEMO_PUBLISH_ANNOTATIONS", &cfg.PublishAnnotations); err != nil {
		return Config{}, err
	}
	if raw, ok := lookup("MESQUERY_DEMO_REVIEWER"); ok {
		cfg.Reviewer = strings.TrimSpace(raw)
	}

	if cfg.RowsPerTable <= 0 {
		return Config{}, fmt.Errorf("MESQUERY_DEMO_ROWS must be > 0")
	}
	if cfg.Equipment <= 0 {
		return Config{}, fmt.Errorf("MESQUERY_DEMO_EQUIPMENT must be > 0")
	}
	if cfg.PublishAnnotations && cfg.Reviewer == "" {
		return Config{}, fmt.Errorf("MESQUERY_DEMO_REVIEWER is required when publishing annotations")
	}
	return cfg, nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
