// Package config loads service configuration with koanf.
//
// Sources are applied in order, later ones overriding earlier:
// built-in defaults, an optional YAML file, then ARABIA_* environment
// variables. The first underscore after the prefix separates the section
// from the key, so ARABIA_JWT_ACCESS_TTL sets jwt.access_ttl.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "ARABIA_"

const minJWTKeyLength = 32

// Config is the full service configuration.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	CORS     CORS     `koanf:"cors"`
	Database Database `koanf:"database"`
	JWT      JWT      `koanf:"jwt"`
	Redis    Redis    `koanf:"redis"`
	Login    Login    `koanf:"login"`
	Log      Log      `koanf:"log"`
}

type HTTP struct {
	Addr          string  `koanf:"addr"`
	MaxBodyBytes  int64   `koanf:"max_body_bytes"`
	RateBurst     int     `koanf:"rate_burst"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	// TrustedProxies is a comma separated list of IPs or CIDRs whose
	// X-Forwarded-For header is honoured. Empty trusts no proxy.
	TrustedProxies string `koanf:"trusted_proxies"`
}

// Proxies splits TrustedProxies into trimmed, non-empty entries.
func (h HTTP) Proxies() []string { return splitList(h.TrustedProxies) }

type CORS struct {
	// AllowedOrigins is a comma separated list.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c CORS) Origins() []string { return splitList(c.AllowedOrigins) }

func splitList(list string) []string {
	var out []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type Database struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

type JWT struct {
	Key        string        `koanf:"key"`
	Issuer     string        `koanf:"issuer"`
	Audience   string        `koanf:"audience"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
}

// Redis is optional; an empty Addr disables login throttling.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type Login struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Window      time.Duration `koanf:"window"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":               ":8080",
		"http.max_body_bytes":     int64(1 << 20),
		"http.rate_burst":         20,
		"http.rate_per_second":    10.0,
		"http.trusted_proxies":    "",
		"cors.allowed_origins":    "",
		"database.max_open_conns": 10,
		"jwt.access_ttl":          "1h",
		"jwt.refresh_ttl":         "168h",
		"login.max_attempts":      5,
		"login.window":            "15m",
		"log.level":               "info",
		"log.format":              "json",
	}
}

// Validate reports configuration that would prevent the service from starting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Key) == "" {
		errs = append(errs, errors.New("jwt.key is required"))
	} else if len(c.JWT.Key) < minJWTKeyLength {
		errs = append(errs, fmt.Errorf("jwt.key must be at least %d bytes", minJWTKeyLength))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("jwt.audience is required"))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("jwt token lifetimes must be positive"))
	}
	return errors.Join(errs...)
}

// Loader collects configuration sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets an optional YAML file.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader creates a loader preloaded with defaults.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the merged configuration.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.k.Load(mapProvider(defaults()), nil); err != nil {
		return cfg, fmt.Errorf("load defaults: %w", err)
	}
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load file %s: %w", l.filePath, err)
		}
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKey maps ARABIA_DATABASE_MAX_OPEN_CONNS to database.max_open_conns.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load is a shortcut for NewLoader(opts...).Load().
func Load(opts ...Option) (Config, error) {
	return NewLoader(opts...).Load()
}

// mapProvider is a koanf provider over a flat dotted-key map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return unflatten(out), nil
}

func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return out
}
