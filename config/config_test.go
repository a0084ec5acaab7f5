package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero max concurrent",
			mutate: func(cfg *Config) {
				cfg.MaxConcurrent = 0
			},
			wantErr: "max concurrent",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "unsupported scheme",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "ftp://72.233.250.83/data/ecam/"
			},
			wantErr: "scheme",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.DispatchDelay = -time.Millisecond
			},
			wantErr: "dispatch delay",
		},
		{
			name: "extension without dot",
			mutate: func(cfg *Config) {
				cfg.FileExtension = "fits"
			},
			wantErr: "file extension",
		},
		{
			name: "empty output dir",
			mutate: func(cfg *Config) {
				cfg.OutputDir = ""
			},
			wantErr: "output directory",
		},
		{
			name: "bad report format",
			mutate: func(cfg *Config) {
				cfg.ReportFile = "report.xml"
				cfg.ReportFormat = "xml"
			},
			wantErr: "report format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Fatalf("max concurrent = %d, want 5", cfg.MaxConcurrent)
	}
	if cfg.OutputDir != "data" {
		t.Fatalf("output dir = %q, want data", cfg.OutputDir)
	}
}

func TestNormalizedBaseURL(t *testing.T) {
	for _, in := range []string{"http://host/data/ecam", "http://host/data/ecam/", "http://host/data/ecam//"} {
		cfg := DefaultConfig()
		cfg.BaseURL = in
		if got := cfg.NormalizedBaseURL(); got != "http://host/data/ecam/" {
			t.Fatalf("NormalizedBaseURL(%q) = %q", in, got)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ECAM_BASE_URL", "http://mirror.test/ecam")
	t.Setenv("ECAM_MAX_CONCURRENT", "9")
	t.Setenv("ECAM_FORCE", "true")
	t.Setenv("ECAM_DELAY", "250ms")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.BaseURL != "http://mirror.test/ecam" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.MaxConcurrent != 9 {
		t.Fatalf("max concurrent = %d, want 9", cfg.MaxConcurrent)
	}
	if !cfg.Force {
		t.Fatalf("force should be set from env")
	}
	if cfg.DispatchDelay != 250*time.Millisecond {
		t.Fatalf("delay = %v, want 250ms", cfg.DispatchDelay)
	}
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	t.Setenv("ECAM_MAX_CONCURRENT", "many")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err == nil || !strings.Contains(err.Error(), "ECAM_MAX_CONCURRENT") {
		t.Fatalf("expected ECAM_MAX_CONCURRENT error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecam.yml")
	doc := "output_dir: /srv/ecam\nmax_concurrent: 3\ndispatch_delay: 50ms\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.OutputDir != "/srv/ecam" || cfg.MaxConcurrent != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.DispatchDelay != 50*time.Millisecond {
		t.Fatalf("dispatch delay = %v, want 50ms", cfg.DispatchDelay)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("base url should keep default, got %q", cfg.BaseURL)
	}
}

func TestLoadFileUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecam.yml")
	if err := os.WriteFile(path, []byte("max_concurent: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := DefaultConfig().LoadFile(path); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}
