// Package validation validates configuration structs using go-playground
// validator struct tags.
//
//	type Config struct {
//	    PoolSize int `mapstructure:"pool_size" validate:"gte=0"`
//	}
//	err := validation.Validate(cfg)
//
// Field names in error messages follow the struct's mapstructure tags so
// they match the keys users write in configuration files.
package validation
