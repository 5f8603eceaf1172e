package core

import "fmt"

// ValidationError reports missing or empty required input. It is always
// raised before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func Validationf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ProvisionError reports a collection that never became ready.
type ProvisionError struct {
	Collection string
	Err        error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Collection, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// EmbeddingError reports an embedding call that produced no usable vectors.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// StoreError wraps any other vector-store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("vector store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// GenerationError reports a generation call that failed or returned no text.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }
