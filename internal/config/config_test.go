package config

import "testing"

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Sources: map[string]SourceConfig{
			"limitless": {BaseURL: "https://x", RateLimitPerMinute: 10},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Dedup.DateWindowDays != 1 {
		t.Errorf("DateWindowDays = %d", cfg.Dedup.DateWindowDays)
	}
	if cfg.Aggregation.MinTournaments != 3 || cfg.Aggregation.DivergenceThreshold != 0.05 {
		t.Errorf("Aggregation = %+v", cfg.Aggregation)
	}
	if cfg.Aggregation.TierS != 0.15 || cfg.Aggregation.TierC != 0.01 {
		t.Errorf("分级门槛 = %+v", cfg.Aggregation)
	}

	src := cfg.Sources["limitless"]
	if src.RateLimitPerMinute != 10 {
		t.Errorf("已配置的值不应被覆盖: %d", src.RateLimitPerMinute)
	}
	if src.Timeout != 20 || src.MaxRetries != 3 || src.MaxConcurrent != 4 {
		t.Errorf("来源默认值 = %+v", src)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://env/override")
	t.Setenv("SOURCE_LIMITLESS_PROXY", "http://proxy:8080")

	cfg := &Config{Sources: map[string]SourceConfig{"limitless": {}}}
	overrideFromEnv(cfg)
	if cfg.Postgres.DSN != "postgres://env/override" {
		t.Errorf("DSN = %q", cfg.Postgres.DSN)
	}
	if cfg.Sources["limitless"].Proxy != "http://proxy:8080" {
		t.Errorf("Proxy = %q", cfg.Sources["limitless"].Proxy)
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("limitless"); got != "LIMITLESS" {
		t.Errorf("envKey = %q", got)
	}
	if got := envKey("rk9-jp"); got != "RK9_JP" {
		t.Errorf("envKey = %q", got)
	}
}
