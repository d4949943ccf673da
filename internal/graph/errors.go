package graph

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks graph data that cannot be matched against safely.
var ErrConfiguration = errors.New("graph configuration error")

// ConfigurationError wraps deterministic snapshot validation failures.
type ConfigurationError struct {
	Kind error
	Msg  string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Kind }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Kind: ErrConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps a snapshot accessor failure as a configuration error.
func StoreUnavailable(project string, err error) error {
	return &ConfigurationError{Kind: ErrConfiguration, Msg: fmt.Sprintf("graph store unavailable for %s: %v", project, err)}
}

// IsConfigurationError reports whether err carries ErrConfiguration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
