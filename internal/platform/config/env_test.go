package config

import "testing"

type sampleConfig struct {
	Port int    `env:"DRIFTSPACE_TEST_PORT" envDefault:"8082"`
	Addr string `env:"DRIFTSPACE_TEST_ADDR"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg sampleConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8082 {
		t.Fatalf("port = %d, want 8082", cfg.Port)
	}
	if cfg.Addr != "" {
		t.Fatalf("addr = %q, want empty", cfg.Addr)
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("DRIFTSPACE_TEST_PORT", "9001")
	t.Setenv("DRIFTSPACE_TEST_ADDR", "127.0.0.1:9999")

	var cfg sampleConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("port = %d, want 9001", cfg.Port)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("addr = %q, want 127.0.0.1:9999", cfg.Addr)
	}
}
