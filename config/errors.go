package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports missing or invalid settings. It is raised before
// any network call is made.
type ConfigurationError struct {
	Missing []string
	Invalid []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	msg := "configuration error: " + strings.Join(parts, "; ")
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
