// Package apperr defines the error taxonomy shared across the connector:
// required-parameter errors for missing secrets and record fields, and
// invalid-parameter-type errors for malformed caller input.
package apperr

import (
	"errors"
	"fmt"
)

// RequiredParameter reports a missing required field, identified by its
// dotted key path (for example "secret_data.mimir_endpoint" or "cost").
type RequiredParameter struct {
	Key string
}

func (e *RequiredParameter) Error() string {
	return fmt.Sprintf("required parameter is missing: %s", e.Key)
}

// InvalidParameterType reports caller input that does not match the
// expected format for its key.
type InvalidParameterType struct {
	Key      string
	Expected string
}

func (e *InvalidParameterType) Error() string {
	return fmt.Sprintf("parameter %s does not match expected format %q", e.Key, e.Expected)
}

// IsRequiredParameter reports whether err is (or wraps) a RequiredParameter.
func IsRequiredParameter(err error) bool {
	var target *RequiredParameter
	return errors.As(err, &target)
}

// IsInvalidParameterType reports whether err is (or wraps) an InvalidParameterType.
func IsInvalidParameterType(err error) bool {
	var target *InvalidParameterType
	return errors.As(err, &target)
}
