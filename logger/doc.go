// Package logger provides structured logging for emhttp using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers carrying structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.Get("handler")
//	log.Info("pool created", logger.Fields("origin", origin, "size", 5))
package logger
