// Package config resolves client settings.
//
// Values are layered, later layers winning:
//
//  1. Defaults
//  2. YAML file (--config, else $XDG_CONFIG_HOME/shrimpzone/config.yaml if present)
//  3. SHRIMPZONE_* environment variables
//
// The result is checked against an embedded CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/money"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "SHRIMPZONE_"

// Config holds resolved settings.
type Config struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	Database       string        `yaml:"database" env:"DB"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	CheckoutDelay  time.Duration `yaml:"checkout_delay" env:"CHECKOUT_DELAY"`
	SessionTTL     time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	MutationPolicy string        `yaml:"mutation_policy" env:"MUTATION_POLICY"`
	DeliveryFee    string        `yaml:"delivery_fee" env:"DELIVERY_FEE"`
	TaxRate        string        `yaml:"tax_rate" env:"TAX_RATE"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:5000",
		Database:       defaultDatabase(),
		RequestTimeout: 15 * time.Second,
		CheckoutDelay:  2 * time.Second,
		SessionTTL:     7 * 24 * time.Hour,
		MutationPolicy: cart.PolicyLastResponseWins.String(),
		DeliveryFee:    "3.99",
		TaxRate:        "0.08",
		LogLevel:       "info",
	}
}

func defaultDatabase() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shrimpzone.db"
	}
	return filepath.Join(dir, "shrimpzone", "state.db")
}

// DefaultPath is the config file read when none is named.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "shrimpzone", "config.yaml")
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path names the YAML file. Empty means DefaultPath, which may be absent.
	Path string

	// Environ replaces the process environment (for testing).
	Environ map[string]string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path, required := opts.Path, true
	if path == "" {
		path, required = DefaultPath(), false
	}
	if path != "" {
		if err := mergeFile(&cfg, path, required); err != nil {
			return Config{}, err
		}
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if opts.Environ != nil {
		envOpts.Environment = opts.Environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return Config{}, &LoadError{Code: ErrCodeEnv, Message: "parse environment", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		code := ErrCodeParse
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return &LoadError{Code: code, Path: path, Message: "read config", Err: err}
	}

	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return &LoadError{Code: ErrCodeParse, Path: path, Message: "decode yaml", Err: err}
	}
	cfg.overlay(file)
	slog.Debug("loaded config file", "path", path)
	return nil
}

// overlay copies every non-zero field of o onto c. A zero duration in the
// file therefore keeps the default; use the environment to set one to 0.
func (c *Config) overlay(o Config) {
	if o.BaseURL != "" {
		c.BaseURL = o.BaseURL
	}
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.RequestTimeout != 0 {
		c.RequestTimeout = o.RequestTimeout
	}
	if o.CheckoutDelay != 0 {
		c.CheckoutDelay = o.CheckoutDelay
	}
	if o.SessionTTL != 0 {
		c.SessionTTL = o.SessionTTL
	}
	if o.MutationPolicy != "" {
		c.MutationPolicy = o.MutationPolicy
	}
	if o.DeliveryFee != "" {
		c.DeliveryFee = o.DeliveryFee
	}
	if o.TaxRate != "" {
		c.TaxRate = o.TaxRate
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(map[string]any{
		"base_url":        c.BaseURL,
		"database":        c.Database,
		"request_timeout": c.RequestTimeout.Seconds(),
		"checkout_delay":  c.CheckoutDelay.Seconds(),
		"session_ttl":     c.SessionTTL.Seconds(),
		"mutation_policy": c.MutationPolicy,
		"delivery_fee":    c.DeliveryFee,
		"tax_rate":        c.TaxRate,
		"log_level":       c.LogLevel,
	})
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &LoadError{Code: ErrCodeInvalid, Message: cueerrors.Details(err, nil)}
	}
	return nil
}

// Policy returns the cart mutation policy.
func (c Config) Policy() cart.Policy {
	p, err := cart.ParsePolicy(c.MutationPolicy)
	if err != nil {
		return cart.PolicyLastResponseWins
	}
	return p
}

// Fees returns the delivery fee and tax rate.
func (c Config) Fees() (fee, rate money.Amount, err error) {
	if fee, err = money.Parse(c.DeliveryFee); err != nil {
		return money.Amount{}, money.Amount{}, fmt.Errorf("delivery fee: %w", err)
	}
	if rate, err = money.Parse(c.TaxRate); err != nil {
		return money.Amount{}, money.Amount{}, fmt.Errorf("tax rate: %w", err)
	}
	return fee, rate, nil
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
