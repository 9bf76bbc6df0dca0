package config

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes configuration failures.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an explicitly named config file is missing.
	ErrCodeNotFound ErrorCode = "CONFIG_NOT_FOUND"

	// ErrCodeParse indicates the config file is not valid YAML or has
	// fields of the wrong type.
	ErrCodeParse ErrorCode = "CONFIG_PARSE"

	// ErrCodeEnv indicates a SHRIMPZONE_* variable could not be parsed.
	ErrCodeEnv ErrorCode = "CONFIG_ENV"

	// ErrCodeInvalid indicates the resolved config violates the schema.
	ErrCodeInvalid ErrorCode = "CONFIG_INVALID"
)

// LoadError describes why configuration could not be loaded.
type LoadError struct {
	Code    ErrorCode
	Path    string // config file involved, if any
	Message string
	Err     error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsInvalid reports whether err is a schema violation.
func IsInvalid(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == ErrCodeInvalid
}
