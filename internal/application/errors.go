package application

import "fmt"

// DecodeError marks a malformed wire payload.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ValidationError marks a raw payload missing a required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required field %s is missing", e.Field)
}

// NotConfiguredError marks a network with no configured upstream node.
type NotConfiguredError struct {
	Network string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("network %s has no configured upstream", e.Network)
}

// NotFoundError marks an absent entity.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// ProcessingError wraps a failure with the operation it happened in.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func processingErr(op string, err error) error {
	return &ProcessingError{Op: op, Err: err}
}
