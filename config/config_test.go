package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Skryldev/image-fetcher/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	if cfg.CacheDir != "" {
		t.Fatalf("CacheDir = %q, want empty until the caller sets it", cfg.CacheDir)
	}
	if cfg.QueueSize != 256 {
		t.Fatalf("QueueSize = %d, want 256", cfg.QueueSize)
	}
	if cfg.JobTimeout != 30*time.Second {
		t.Fatalf("JobTimeout = %v, want 30s", cfg.JobTimeout)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Fatalf("FetchTimeout = %v, want 15s", cfg.FetchTimeout)
	}
	if cfg.MaxBodyBytes != 32*1024*1024 {
		t.Fatalf("MaxBodyBytes = %d, want 32MiB", cfg.MaxBodyBytes)
	}
	if cfg.Backend != config.BackendImaging {
		t.Fatalf("Backend = %q, want %q", cfg.Backend, config.BackendImaging)
	}
}

func TestValidate(t *testing.T) {
	valid := config.Default()
	valid.CacheDir = "/var/cache/avatars"

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"missing cache dir", func(c *config.Config) { c.CacheDir = "" }, "CacheDir"},
		{"negative queue", func(c *config.Config) { c.QueueSize = -1 }, "QueueSize"},
		{"negative body cap", func(c *config.Config) { c.MaxBodyBytes = -1 }, "MaxBodyBytes"},
		{"unknown backend", func(c *config.Config) { c.Backend = "imagemagick" }, "Backend"},
		{"vips backend accepted", func(c *config.Config) { c.Backend = config.BackendVips }, ""},
		{"empty backend accepted", func(c *config.Config) { c.Backend = "" }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := config.Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}
