// Package config loads emhttp configuration from a YAML file, a .env file
// and the environment.
//
// Sources are applied in order, later ones winning: the config file, then
// environment variables (including those loaded from .env). Environment
// variables are prefixed with the upper-cased service name and map onto
// the first configuration section:
//
//	EMHTTP_LOGGING_LEVEL=debug      -> logging.level
//	EMHTTP_HANDLER_POOL_SIZE=10     -> handler.pool_size
//
// # Usage
//
//	var cfg config.ServiceConfig
//	err := config.LoadConfig("emhttp", &cfg, config.WithConfigFile(path))
package config
