package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values from defaults, an optional YAML file
// and environment variables, in that order of precedence.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log     LoggingConfig `koanf:"log"`
	Filters FiltersConfig `koanf:"filters"`
	Cache   CacheConfig   `koanf:"cache"`
	API     APIConfig     `koanf:"api"`
}

// LoggingConfig controls log verbosity: "debug", "info", "warn", or "error".
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// FiltersConfig locates the filter lists on disk and upstream.
type FiltersConfig struct {
	// Directory holds easylist.txt, easyprivacy.txt and custom_rules.txt.
	Directory string `koanf:"dir" validate:"required"`

	// GeneralURL and PrivacyURL are the remote lists. An empty URL makes the
	// source local-only.
	GeneralURL string `koanf:"general_url" validate:"omitempty,http_url"`
	PrivacyURL string `koanf:"privacy_url" validate:"omitempty,http_url"`

	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	// MaxSize caps a downloaded list body, e.g. "50MB".
	MaxSize datasize.ByteSize `koanf:"max_size" validate:"gt=0"`

	// MetaDB is the bbolt file for per-source refresh metadata. Empty
	// disables persistence.
	MetaDB string `koanf:"meta_db"`
}

// CacheConfig sizes the decision cache. Size 0 disables caching.
type CacheConfig struct {
	Size        int  `koanf:"size" validate:"gte=0"`
	PurgeOnSwap bool `koanf:"purge_on_swap"`
}

// APIConfig configures the HTTP check API.
type APIConfig struct {
	Listen string `koanf:"listen" validate:"required,listen_addr"`

	// RefreshInterval is the minimum spacing of manual refreshes. Zero
	// disables the limit.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gte=0"`
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Filters: FiltersConfig{
		Directory:    "/var/lib/rr-filter/lists",
		GeneralURL:   "https://easylist.to/easylist/easylist.txt",
		PrivacyURL:   "https://easylist.to/easylist/easyprivacy.txt",
		FetchTimeout: 30 * time.Second,
		MaxSize:      50 * datasize.MB,
		MetaDB:       "/var/lib/rr-filter/meta.db",
	},
	Cache: CacheConfig{Size: 512},
	API:   APIConfig{Listen: "127.0.0.1:8080", RefreshInterval: time.Minute},
}

// envPrefix is stripped from recognized environment variables.
const envPrefix = "RRF_"

// envKeys maps environment variable names (without prefix) to config keys.
// Unknown variables are ignored.
var envKeys = map[string]string{
	"ENV":                   "env",
	"LOG_LEVEL":             "log.level",
	"FILTERS_DIR":           "filters.dir",
	"FILTERS_GENERAL_URL":   "filters.general_url",
	"FILTERS_PRIVACY_URL":   "filters.privacy_url",
	"FILTERS_FETCH_TIMEOUT": "filters.fetch_timeout",
	"FILTERS_MAX_SIZE":      "filters.max_size",
	"FILTERS_META_DB":       "filters.meta_db",
	"CACHE_SIZE":            "cache.size",
	"CACHE_PURGE_ON_SWAP":   "cache.purge_on_swap",
	"API_LISTEN":            "api.listen",
	"API_REFRESH_INTERVAL":  "api.refresh_interval",
}

// validListenAddr accepts "host:port" or ":port" with a port in 1..65535.
func validListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	if host != "" && strings.ContainsAny(host, " /") {
		return false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	return err == nil && n > 0
}

// envLoader loads RRF_ environment variables and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := envKeys[strings.TrimPrefix(key, envPrefix)]
			if !ok {
				return "", nil
			}
			return mapped, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads a YAML config file.
var fileLoader = func(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), yaml.Parser())
}

// registerValidation registers the "listen_addr" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load builds an AppConfig from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
