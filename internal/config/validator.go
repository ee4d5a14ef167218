package config

import (
	"fmt"
	"strings"

	"github.com/stackcollector/stackcollector/internal/logging"
	"github.com/stackcollector/stackcollector/internal/store"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&builder, "  %d. %s\n", i+1, err.Error())
	}
	return builder.String()
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Store.Path == "" {
		add("store.path", "path is required")
	}
	if c.Store.Engine == "" || !store.ValidEngine(c.Store.Engine) {
		add("store.engine", "must be one of %s, got %q", strings.Join(store.Engines, ", "), c.Store.Engine)
	}

	if len(c.Collector.Hosts) == 0 {
		add("collector.hosts", "at least one host is required")
	}
	for _, h := range c.Collector.Hosts {
		if strings.TrimSpace(h) == "" {
			add("collector.hosts", "host cannot be empty")
			break
		}
	}
	if _, err := ParsePorts(c.Collector.Ports); err != nil {
		add("collector.ports", "%v", err)
	}
	if c.Collector.Interval <= 0 {
		add("collector.interval", "must be positive, got %s", c.Collector.Interval)
	}
	if c.Collector.Timeout <= 0 {
		add("collector.timeout", "must be positive, got %s", c.Collector.Timeout)
	}

	if c.Visualizer.Port < 0 || c.Visualizer.Port > maxPort {
		add("visualizer.port", "must be within 0-%d, got %d", maxPort, c.Visualizer.Port)
	}
	if c.Visualizer.QueryTimeout <= 0 {
		add("visualizer.query_timeout", "must be positive, got %s", c.Visualizer.QueryTimeout)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", "must be one of %s, got %q", strings.Join(logging.Levels, ", "), c.Logging.Level)
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}
