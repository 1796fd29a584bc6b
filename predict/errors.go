package predict

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when the request carries no JSON object.
var ErrNoData = errors.New("no data provided")

// MissingFieldsError lists required features absent from the payload, in
// schema order.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %v", e.Fields)
}

// InferenceError wraps a failure raised by the model.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err stems from the request payload.
func IsClientError(err error) bool {
	var missing *MissingFieldsError
	return errors.Is(err, ErrNoData) || errors.As(err, &missing)
}
