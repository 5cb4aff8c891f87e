package errors

import "strings"

// ConfigError is fatal: the process must not start with it.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Add(problem string) {
	e.Problems = append(e.Problems, problem)
}

// OrNil returns nil when no problem was recorded.
func (e *ConfigError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
