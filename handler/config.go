package handler

import (
	"fmt"
	"maps"
	"time"

	"github.com/spf13/cast"

	"github.com/eranb/em-aws/pool"
	"github.com/eranb/em-aws/validation"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPoolSize       = 5
	defaultPoolTimeout    = 10 * time.Second
)

// Config configures a Handler. It is read-only once the handler is built.
type Config struct {
	// InactivityTimeout fails a call when no data arrives for this long. 0 disables it.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" mapstructure:"inactivity_timeout" validate:"gte=0"`
	// ConnectTimeout bounds TCP connect and TLS handshake. Defaults to 10s.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" validate:"gte=0"`
	// PoolSize is the maximum number of connections per origin. 0 disables pooling.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size" validate:"gte=0"`
	// NeverBlock fails acquisition immediately when the pool is exhausted.
	NeverBlock bool `yaml:"never_block" mapstructure:"never_block"`
	// PoolTimeout bounds how long acquisition waits for a free connection.
	PoolTimeout time.Duration `yaml:"pool_timeout" mapstructure:"pool_timeout" validate:"gte=0"`
	// HTTP2 negotiates HTTP/2 on pooled TLS connections.
	HTTP2 bool `yaml:"http2" mapstructure:"http2"`

	// Defaults are per-request options merged under every request.
	Defaults map[string]any `yaml:"-" mapstructure:",remain"`
}

// DefaultConfig returns the handler defaults: 10s connect timeout, pools
// of 5 connections that block up to 10s, no inactivity timeout.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: defaultConnectTimeout,
		PoolSize:       defaultPoolSize,
		PoolTimeout:    defaultPoolTimeout,
		Defaults:       map[string]any{},
	}
}

// ApplyDefaults fills in zero-value fields that have no "disabled" meaning.
func (c *Config) ApplyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.Defaults == nil {
		c.Defaults = map[string]any{}
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("handler: %w", err)
	}
	return nil
}

func (c Config) poolConfig() pool.Config {
	return pool.Config{
		Size:       c.PoolSize,
		NeverBlock: c.NeverBlock,
		Timeout:    c.PoolTimeout,
	}
}

// ParseOptions builds a Config from construction options as they appear
// in configuration files. Timeouts are seconds, given as numbers, numeric
// strings or Go duration strings ("250ms"). Keys other than the handler's
// own pass through unchanged as default request options.
//
//	cfg, err := handler.ParseOptions(map[string]any{
//	    "pool_size":       10,
//	    "connect_timeout": 0.5,
//	    "headers":         map[string]any{"accept": "application/json"},
//	})
func ParseOptions(opts map[string]any) (Config, error) {
	cfg := DefaultConfig()
	for key, value := range opts {
		var err error
		switch key {
		case "inactivity_timeout":
			cfg.InactivityTimeout, err = seconds(value)
		case "connect_timeout":
			cfg.ConnectTimeout, err = seconds(value)
		case "pool_size":
			cfg.PoolSize, err = cast.ToIntE(value)
		case "never_block":
			cfg.NeverBlock, err = cast.ToBoolE(value)
		case "pool_timeout":
			cfg.PoolTimeout, err = seconds(value)
		case "http2":
			cfg.HTTP2, err = cast.ToBoolE(value)
		default:
			cfg.Defaults[key] = value
		}
		if err != nil {
			return Config{}, fmt.Errorf("handler: option %s: %w", key, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// seconds converts a configuration value to a duration.
func seconds(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d, nil
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// WithDefaults returns a copy of c whose default request options are
// extended with opts.
func (c Config) WithDefaults(opts map[string]any) Config {
	merged := make(map[string]any, len(c.Defaults)+len(opts))
	maps.Copy(merged, c.Defaults)
	maps.Copy(merged, opts)
	c.Defaults = merged
	return c
}
