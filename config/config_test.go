package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty config", func(t *testing.T) {
		cfg := ServiceConfig{}
		cfg.ApplyDefaults()
		if cfg.Name != "emhttp" {
			t.Errorf("expected name 'emhttp', got %q", cfg.Name)
		}
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected logging level 'info', got %q", cfg.Logging.Level)
		}
	})

	t.Run("debug raises log level", func(t *testing.T) {
		cfg := ServiceConfig{Debug: true}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected logging level 'debug', got %q", cfg.Logging.Level)
		}
	})

	t.Run("observability defaults only when enabled", func(t *testing.T) {
		cfg := ServiceConfig{}
		cfg.ApplyDefaults()
		if cfg.Observability.Endpoint != "" {
			t.Errorf("expected no endpoint when disabled, got %q", cfg.Observability.Endpoint)
		}
		cfg.Observability.Enabled = true
		cfg.ApplyDefaults()
		if cfg.Observability.Endpoint == "" {
			t.Error("expected default endpoint when enabled")
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func() ServiceConfig {
		cfg := ServiceConfig{Name: "emhttp", Environment: "production"}
		cfg.Logging.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ServiceConfig)
		wantErr string
	}{
		{"valid", func(*ServiceConfig) {}, ""},
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "config.name is required"},
		{"invalid environment", func(c *ServiceConfig) { c.Environment = "qa" }, "config.environment must be one of"},
		{"invalid logging", func(c *ServiceConfig) { c.Logging.Level = "loud" }, "config.logging"},
		{"invalid sample rate", func(c *ServiceConfig) { c.Observability.SampleRate = 2 }, "config.observability"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: test-service
environment: staging
logging:
  level: warn
  format: json
handler:
  pool_size: 3
  never_block: true
  read_timeout: 30
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg ServiceConfig
	if err := LoadConfig("emhttp-test-yaml", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "test-service" {
		t.Errorf("expected name 'test-service', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected logging level 'warn', got %q", cfg.Logging.Level)
	}
	if cfg.Handler["pool_size"] != 3 {
		t.Errorf("expected handler.pool_size 3, got %#v", cfg.Handler["pool_size"])
	}
	if cfg.Handler["read_timeout"] != 30 {
		t.Errorf("expected pass-through handler.read_timeout 30, got %#v", cfg.Handler["read_timeout"])
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("handler:\n  pool_size: 3\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("EMHTTP_TEST_ENV_HANDLER_POOL_SIZE", "9")
	t.Setenv("EMHTTP_TEST_ENV_LOGGING_LEVEL", "debug")

	var cfg ServiceConfig
	if err := LoadConfig("emhttp-test-env", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Handler["pool_size"] != "9" {
		t.Errorf("expected env override '9', got %#v", cfg.Handler["pool_size"])
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level 'debug', got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("EMHTTP_DOTENV_NAME=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("EMHTTP_DOTENV_NAME") })

	var cfg ServiceConfig
	if err := LoadConfig("emhttp-dotenv", &cfg, WithEnvFile(envPath), WithFileSystem(&RealFileSystem{})); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "from-dotenv" {
		t.Errorf("expected name from .env, got %q", cfg.Name)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg ServiceConfig
	err := LoadConfig("emhttp", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadConfigNothingFound(t *testing.T) {
	var cfg ServiceConfig
	err := LoadConfig("emhttp", &cfg, WithFileSystem(&mockFS{files: map[string]bool{}}))
	if err != nil {
		t.Fatalf("expected success without any config file, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config.yml":                      true,
		"/home/u/.config/emhttp/config.yml": true,
		"./.env":                            true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("emhttp", LoaderConfig{})
	if files.ConfigFile != "./config.yml" {
		t.Errorf("expected ./config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	fs.files["./emhttp.yml"] = true
	if got := resolver.ResolveFiles("emhttp", LoaderConfig{}).ConfigFile; got != "./emhttp.yml" {
		t.Errorf("expected service-named file to win, got %q", got)
	}

	delete(fs.files, "./emhttp.yml")
	delete(fs.files, "./config.yml")
	if got := resolver.ResolveFiles("emhttp", LoaderConfig{}).ConfigFile; got != "/home/u/.config/emhttp/config.yml" {
		t.Errorf("expected user config dir fallback, got %q", got)
	}

	explicit := resolver.ResolveFiles("emhttp", LoaderConfig{ConfigFile: "x.yml", EnvFile: "y.env"})
	if explicit.ConfigFile != "x.yml" || explicit.EnvFile != "y.env" {
		t.Errorf("explicit paths should be kept, got %+v", explicit)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool        { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error      { return nil }
func (m *mockFS) UserConfigDir() (string, error) { return "/home/u/.config", nil }

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"NAME":                  "name",
		"HANDLER_POOL_SIZE":     "handler.pool_size",
		"LOGGING_NO_COLOR":      "logging.no_color",
		"OBSERVABILITY_ENABLED": "observability.enabled",
		"TRAILING_":             "trailing",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBindEnvVars(t *testing.T) {
	v := viper.New()
	bindEnvVars(v, "EMHTTP_", []string{
		"EMHTTP_HANDLER_NEVER_BLOCK=true",
		"PATH=/usr/bin",
		"EMHTTP_MALFORMED",
	})
	if got := v.GetString("handler.never_block"); got != "true" {
		t.Errorf("expected handler.never_block=true, got %q", got)
	}
	if v.IsSet("path") {
		t.Error("unprefixed variables must not be bound")
	}
}

func TestEnvPrefix(t *testing.T) {
	if got := envPrefix("em-http"); got != "EM_HTTP_" {
		t.Errorf("expected EM_HTTP_, got %q", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/config.yml" {
		t.Errorf("expected config file path, got %q", lc.ConfigFile)
	}
	if lc.EnvFile != "/path/to/.env" {
		t.Errorf("expected env file path, got %q", lc.EnvFile)
	}
}
