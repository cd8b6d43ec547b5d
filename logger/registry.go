package logger

import (
	"sync"
)

// registry maps component names to loggers that differ from the global
// logger, typically by level.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register makes l the logger returned by Get(name).
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// registerLevels replaces the registry with one component logger per entry
// in levels, each derived from base.
func registerLevels(base *Logger, levels map[string]string) {
	loggers := make(map[string]*Logger, len(levels))
	for name, level := range levels {
		loggers[name] = base.WithComponent(name).WithLevel(level)
	}
	registry.mu.Lock()
	registry.loggers = loggers
	registry.mu.Unlock()
}

// Get returns the logger for a component. Unregistered names get the
// global logger tagged with the component name.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}
