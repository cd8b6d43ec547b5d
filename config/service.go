package config

import (
	"fmt"
	"slices"

	"github.com/eranb/em-aws/logger"
	"github.com/eranb/em-aws/observability"
	"github.com/eranb/em-aws/validation"
)

// ServiceConfig is the top-level emhttp configuration.
//
//	name: emhttp
//	environment: production
//	logging:
//	  level: info
//	  format: json
//	  components:
//	    handler: debug
//	handler:
//	  pool_size: 10
//	  connect_timeout: 2
//	  read_timeout: 30   # unknown keys become default request options
type ServiceConfig struct {
	Name          string               `yaml:"name" mapstructure:"name"`
	Environment   string               `yaml:"environment" mapstructure:"environment"`
	Version       string               `yaml:"version" mapstructure:"version"`
	Debug         bool                 `yaml:"debug" mapstructure:"debug"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	// Handler holds raw handler options; see handler.ParseOptions.
	Handler map[string]any `yaml:"handler" mapstructure:"handler"`
}

// ApplyDefaults applies default values to the configuration.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "emhttp"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
	if c.Observability.Enabled {
		c.Observability.ApplyDefaults()
	}
}

// Validate validates the configuration.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	validEnvs := []string{"development", "staging", "production"}
	if !slices.Contains(validEnvs, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := validation.Validate(c.Observability); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	return nil
}
