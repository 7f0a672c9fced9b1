// Package chaterrors implements the closed error taxonomy of §7: every
// failure mode the orchestration core can surface is one of the typed
// values declared here, carrying a machine-readable tag and a user-safe
// message. Call sites use errors.As to recover a specific variant, the same
// pattern the teacher repo uses for its ContextLengthError/PreDeltaError
// wrapper types (pkg/aierrors/errors.go).
package chaterrors

import "fmt"

// Unauthorized indicates the caller's identity could not be established.
type Unauthorized struct{ Reason string }

func (e *Unauthorized) Error() string { return "unauthorized: " + e.Reason }

// Forbidden indicates the caller is known but not entitled to the resource.
type Forbidden struct{ Reason string }

func (e *Forbidden) Error() string { return "forbidden: " + e.Reason }

// NotFound indicates the referenced entity does not exist (or is not owned
// by the requesting user, which the repositories treat identically).
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }

// ValidationError indicates a write failed schema or invariant validation.
type ValidationError struct{ Fields []string }

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for fields: %v", e.Fields)
}

// ConfigurationError indicates a required credential or profile is absent.
type ConfigurationError struct{ Missing []string }

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error, missing: %v", e.Missing)
}

// ProviderError is any non-retryable provider failure that doesn't map to a
// more specific subclass below.
type ProviderError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s error (status %d): %s", e.Provider, e.Status, e.Detail)
}

// APIKeyError indicates the provided credential was rejected.
type APIKeyError struct{ Provider string }

func (e *APIKeyError) Error() string { return "invalid API key for provider " + e.Provider }

// RateLimitError indicates the provider is throttling the caller.
type RateLimitError struct {
	Provider   string
	RetryAfter int // seconds; 0 means unknown
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s, retry after %ds", e.Provider, e.RetryAfter)
	}
	return "rate limited by " + e.Provider
}

// NetworkError indicates a transport-level failure talking to a provider.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error talking to %s: %v", e.Provider, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ModelNotFoundError indicates the requested model id is unknown to the provider.
type ModelNotFoundError struct {
	Provider string
	Model    string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found for provider %s", e.Model, e.Provider)
}

// InvalidRequestError indicates the provider rejected the request shape.
type InvalidRequestError struct {
	Provider string
	Detail   string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request to %s: %s", e.Provider, e.Detail)
}

// ContextOverflow indicates context assembly could not fit mandatory
// content within the model's context window (§4.10).
type ContextOverflow struct {
	Required  int
	Available int
}

func (e *ContextOverflow) Error() string {
	return fmt.Sprintf("context overflow: required %d tokens, available %d", e.Required, e.Available)
}

// ToolLoopExceeded indicates the tool-resume loop bound was hit (§4.11 step 5).
type ToolLoopExceeded struct{ Limit int }

func (e *ToolLoopExceeded) Error() string {
	return fmt.Sprintf("tool-resume loop exceeded bound of %d", e.Limit)
}

// StorageError indicates an I/O failure in a repository or the file store.
type StorageError struct {
	Kind string
	Err  error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error (%s): %v", e.Kind, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// EncryptionError indicates a credential decrypt/encrypt operation failed.
// Catastrophic; callers must fail closed.
type EncryptionError struct{ Err error }

func (e *EncryptionError) Error() string { return fmt.Sprintf("encryption error: %v", e.Err) }
func (e *EncryptionError) Unwrap() error { return e.Err }
