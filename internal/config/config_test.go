// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/netSkope/console-export-tool/internal/tabular"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fs
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s1-export.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	fs := newFlagSet(t,
		"--config-file", filepath.Join(t.TempDir(), "missing.yaml"),
		"--console-url", "https://console.example.com",
		"--api-token", "tok",
	)

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.VerifyTLS || !cfg.Consolidate {
		t.Errorf("expected verify-tls and consolidate to default to true: %+v", cfg)
	}
	if cfg.APIVersion != "v2.1" || cfg.PageSize != 1000 || cfg.OutputDir != "." {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Policy() != tabular.HeaderOnce {
		t.Errorf("Policy() = %q, want once", cfg.Policy())
	}
	if d, _ := cfg.Delimiter(); d != ',' {
		t.Errorf("Delimiter() = %q", d)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeYAML(t, `
console_url: https://yaml.example.com
api_token: yaml-token
page_size: 200
verify_tls: false
consolidate: false
header_policy: per-stream
output_dir: /yaml/out
`)
	t.Setenv("S1_EXPORT_PAGE_SIZE", "300")
	t.Setenv("S1_EXPORT_OUTPUT_DIR", "/env/out")
	t.Setenv("S1_EXPORT_CONSOLIDATE", "true")

	fs := newFlagSet(t, "--config-file", path, "--output-dir", "/flag/out")

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"console url from yaml", cfg.ConsoleURL, "https://yaml.example.com"},
		{"token from yaml", cfg.APIToken, "yaml-token"},
		{"page size env over yaml", cfg.PageSize, 300},
		{"output dir flag over env", cfg.OutputDir, "/flag/out"},
		{"verify tls from yaml", cfg.VerifyTLS, false},
		{"consolidate env over yaml", cfg.Consolidate, true},
		{"header policy from yaml", cfg.HeaderPolicy, "per-stream"},
		{"unset flag keeps default api version", cfg.APIVersion, "v2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("S1_EXPORT_PAGE_SIZE", "lots")
	fs := newFlagSet(t, "--console-url", "https://c.example.com", "--api-token", "t")

	if _, err := Load(fs); err == nil || !strings.Contains(err.Error(), "S1_EXPORT_PAGE_SIZE") {
		t.Errorf("expected env parse error, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.ConsoleURL = "https://console.example.com"
		cfg.APIToken = "tok"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"secret instead of token", func(c *Config) { c.APIToken = ""; c.APITokenSecret = "s1/token" }, ""},
		{"missing url", func(c *Config) { c.ConsoleURL = "" }, "console-url is required"},
		{"bad scheme", func(c *Config) { c.ConsoleURL = "ftp://x" }, "http(s)"},
		{"missing token", func(c *Config) { c.APIToken = "" }, "api-token"},
		{"page size zero", func(c *Config) { c.PageSize = 0 }, "page-size"},
		{"page size too big", func(c *Config) { c.PageSize = 1001 }, "page-size"},
		{"two char delimiter", func(c *Config) { c.CSVDelimiter = ";;" }, "csv-delimiter"},
		{"unknown policy", func(c *Config) { c.HeaderPolicy = "never" }, "header policy"},
		{"bucket without region", func(c *Config) { c.S3Bucket = "b" }, "aws-region"},
		{"history without user", func(c *Config) { c.HistoryHost = "db" }, "history-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_HistoryDSN(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{
			name:   "with user and password",
			config: &Config{HistoryHost: "localhost", HistoryPort: 3306, HistoryUser: "u", HistoryPassword: "p", HistoryDatabase: "db"},
			want:   "u:p@tcp(localhost)/db?parseTime=true",
		},
		{
			name:   "with custom port",
			config: &Config{HistoryHost: "localhost", HistoryPort: 3307, HistoryUser: "u", HistoryPassword: "p", HistoryDatabase: "db"},
			want:   "u:p@tcp(localhost:3307)/db?parseTime=true",
		},
		{
			name:   "without password",
			config: &Config{HistoryHost: "localhost", HistoryPort: 3306, HistoryUser: "u", HistoryDatabase: "db"},
			want:   "u@tcp(localhost)/db?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.HistoryDSN(); got != tt.want {
				t.Errorf("HistoryDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_ReadHistoryAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte(`{"user": "testuser", "password": "testpass"}`), 0600); err != nil {
		t.Fatalf("failed to write auth file: %v", err)
	}

	fs := newFlagSet(t,
		"--console-url", "https://c.example.com",
		"--api-token", "t",
		"--history-host", "db.local",
		"--history-auth", path,
	)
	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HistoryUser != "testuser" || cfg.HistoryPassword != "testpass" {
		t.Errorf("unexpected credentials %q/%q", cfg.HistoryUser, cfg.HistoryPassword)
	}

	if err := (&Config{}).ReadHistoryAuth(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing auth file")
	}
}
