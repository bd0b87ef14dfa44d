package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected Log.Level=info, got %q", cfg.Log.Level)
	}
	if cfg.Filters.Directory != "/var/lib/rr-filter/lists" {
		t.Errorf("expected Filters.Directory=/var/lib/rr-filter/lists, got %q", cfg.Filters.Directory)
	}
	if cfg.Filters.GeneralURL != "https://easylist.to/easylist/easylist.txt" {
		t.Errorf("unexpected Filters.GeneralURL %q", cfg.Filters.GeneralURL)
	}
	if cfg.Filters.PrivacyURL != "https://easylist.to/easylist/easyprivacy.txt" {
		t.Errorf("unexpected Filters.PrivacyURL %q", cfg.Filters.PrivacyURL)
	}
	if cfg.Filters.FetchTimeout != 30*time.Second {
		t.Errorf("expected Filters.FetchTimeout=30s, got %s", cfg.Filters.FetchTimeout)
	}
	if cfg.Filters.MaxSize != 50*datasize.MB {
		t.Errorf("expected Filters.MaxSize=50MB, got %s", cfg.Filters.MaxSize.HR())
	}
	if cfg.API.RefreshInterval != time.Minute {
		t.Errorf("expected API.RefreshInterval=1m, got %s", cfg.API.RefreshInterval)
	}
	if cfg.Cache.Size != 512 {
		t.Errorf("expected Cache.Size=512, got %d", cfg.Cache.Size)
	}
	if cfg.Cache.PurgeOnSwap {
		t.Errorf("expected Cache.PurgeOnSwap=false")
	}
	if cfg.API.Listen != "127.0.0.1:8080" {
		t.Errorf("expected API.Listen=127.0.0.1:8080, got %q", cfg.API.Listen)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RRF_ENV", "dev")
	t.Setenv("RRF_LOG_LEVEL", "debug")
	t.Setenv("RRF_FILTERS_DIR", "/tmp/lists")
	t.Setenv("RRF_FILTERS_GENERAL_URL", "http://mirror.local/easylist.txt")
	t.Setenv("RRF_FILTERS_PRIVACY_URL", "")
	t.Setenv("RRF_FILTERS_FETCH_TIMEOUT", "45s")
	t.Setenv("RRF_FILTERS_META_DB", "")
	t.Setenv("RRF_CACHE_SIZE", "2048")
	t.Setenv("RRF_CACHE_PURGE_ON_SWAP", "true")
	t.Setenv("RRF_API_LISTEN", ":9090")
	t.Setenv("RRF_API_REFRESH_INTERVAL", "0s")
	t.Setenv("RRF_FILTERS_MAX_SIZE", "10MB")
	t.Setenv("RRF_UNKNOWN_KEY", "ignored")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected Log.Level=debug, got %q", cfg.Log.Level)
	}
	if cfg.Filters.Directory != "/tmp/lists" {
		t.Errorf("expected Filters.Directory=/tmp/lists, got %q", cfg.Filters.Directory)
	}
	if cfg.Filters.GeneralURL != "http://mirror.local/easylist.txt" {
		t.Errorf("unexpected Filters.GeneralURL %q", cfg.Filters.GeneralURL)
	}
	if cfg.Filters.PrivacyURL != "" {
		t.Errorf("expected empty Filters.PrivacyURL, got %q", cfg.Filters.PrivacyURL)
	}
	if cfg.Filters.FetchTimeout != 45*time.Second {
		t.Errorf("expected Filters.FetchTimeout=45s, got %s", cfg.Filters.FetchTimeout)
	}
	if cfg.Filters.MetaDB != "" {
		t.Errorf("expected empty Filters.MetaDB, got %q", cfg.Filters.MetaDB)
	}
	if cfg.Cache.Size != 2048 {
		t.Errorf("expected Cache.Size=2048, got %d", cfg.Cache.Size)
	}
	if !cfg.Cache.PurgeOnSwap {
		t.Errorf("expected Cache.PurgeOnSwap=true")
	}
	if cfg.API.RefreshInterval != 0 {
		t.Errorf("expected API.RefreshInterval=0, got %s", cfg.API.RefreshInterval)
	}
	if cfg.Filters.MaxSize != 10*datasize.MB {
		t.Errorf("expected Filters.MaxSize=10MB, got %s", cfg.Filters.MaxSize.HR())
	}
	if cfg.API.Listen != ":9090" {
		t.Errorf("expected API.Listen=:9090, got %q", cfg.API.Listen)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rr-filter.yaml")
	content := `
env: dev
log:
  level: warn
filters:
  dir: /srv/lists
  fetch_timeout: 10s
cache:
  size: 0
api:
  listen: "0.0.0.0:8181"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RRF_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev from file, got %q", cfg.Env)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected env to override file, got Log.Level=%q", cfg.Log.Level)
	}
	if cfg.Filters.Directory != "/srv/lists" {
		t.Errorf("expected Filters.Directory=/srv/lists, got %q", cfg.Filters.Directory)
	}
	if cfg.Filters.FetchTimeout != 10*time.Second {
		t.Errorf("expected Filters.FetchTimeout=10s, got %s", cfg.Filters.FetchTimeout)
	}
	if cfg.Cache.Size != 0 {
		t.Errorf("expected Cache.Size=0, got %d", cfg.Cache.Size)
	}
	if cfg.Filters.GeneralURL != DEFAULT_APP_CONFIG.Filters.GeneralURL {
		t.Errorf("expected default GeneralURL to survive, got %q", cfg.Filters.GeneralURL)
	}
	if cfg.API.Listen != "0.0.0.0:8181" {
		t.Errorf("expected API.Listen=0.0.0.0:8181, got %q", cfg.API.Listen)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"env":           {"RRF_ENV", "staging"},
		"log level":     {"RRF_LOG_LEVEL", "trace"},
		"dir":           {"RRF_FILTERS_DIR", ""},
		"general url":   {"RRF_FILTERS_GENERAL_URL", "ftp://lists.example/easylist.txt"},
		"privacy url":   {"RRF_FILTERS_PRIVACY_URL", "not a url"},
		"fetch timeout": {"RRF_FILTERS_FETCH_TIMEOUT", "0s"},
		"timeout NaN":   {"RRF_FILTERS_FETCH_TIMEOUT", "soon"},
		"cache size":    {"RRF_CACHE_SIZE", "-1"},
		"cache NaN":     {"RRF_CACHE_SIZE", "lots"},
		"listen":        {"RRF_API_LISTEN", "localhost"},
		"listen port":   {"RRF_API_LISTEN", ":0"},
		"max size":      {"RRF_FILTERS_MAX_SIZE", "0"},
		"max size unit": {"RRF_FILTERS_MAX_SIZE", "lots"},
		"refresh limit": {"RRF_API_REFRESH_INTERVAL", "-1s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%q", kv[0], kv[1])
			}
		})
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env")
	}
}

func TestLoad_WhenFileLoadFails(t *testing.T) {
	orig := fileLoader
	fileLoader = func(k *koanf.Koanf, path string) error { return errors.New("mocked error") }
	defer func() { fileLoader = orig }()

	_, err := Load("/etc/rr-filter.yaml")
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading file")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatal("expected error when registering validation")
	}
}

func TestValidListenAddr(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"127.0.0.1:8080", true},
		{":8080", true},
		{"localhost:80", true},
		{"[::1]:8080", true},
		{"localhost", false},
		{"127.0.0.1:", false},
		{":0", false},
		{":70000", false},
		{"bad host:80", false},
		{"", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("listen_addr", validListenAddr)

	for _, tc := range cases {
		type S struct {
			Addr string `validate:"listen_addr"`
		}
		err := validate.Struct(S{Addr: tc.input})
		if tc.expected && err != nil {
			t.Errorf("validListenAddr(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validListenAddr(%q) = true, want false", tc.input)
		}
	}
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()

	DEFAULT_APP_CONFIG.API.Listen = "nowhere"
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for invalid default listen address")
	}
}
