// Package errors defines the error taxonomy shared across the pipeline.
// Callers classify failures with errors.As and the helper predicates
// rather than string matching.
package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError is malformed input detected before any work
// starts: an empty idea, a cyclic stream graph, an invalid threshold.
// Always fatal, never retried.
type ConfigurationError struct {
	// Field names the offending input or setting.
	Field string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfiguration builds a ConfigurationError for the given field.
func NewConfiguration(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError means a hierarchy never reached Passed within the
// rework budget. The caller still receives the best hierarchy produced
// and its final quality report alongside this error.
type ValidationError struct {
	// SubjectID is the hierarchy that failed the gate.
	SubjectID string
	// Cycles is how many rework cycles were spent.
	Cycles int
	// Score is the final score at exhaustion.
	Score float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hierarchy %s failed quality gate after %d rework cycles (score %.2f)", e.SubjectID, e.Cycles, e.Score)
}

// ServiceErrorKind classifies an external tracker failure.
type ServiceErrorKind string

const (
	// KindTransient covers timeouts, 5xx-equivalents and rate-limit
	// signals. Retried with backoff.
	KindTransient ServiceErrorKind = "transient"
	// KindPermanent covers authorization, validation and conflict
	// failures. Never retried.
	KindPermanent ServiceErrorKind = "permanent"
)

// ExternalServiceError is a classified failure from the external issue
// tracker or from the protections in front of it.
type ExternalServiceError struct {
	// Endpoint identifies the external endpoint that failed.
	Endpoint string
	// Kind is transient or permanent.
	Kind ServiceErrorKind
	// Status is the HTTP-style status code when known, 0 otherwise.
	Status int
	// Err is the underlying cause.
	Err error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external service %s: %s failure: %v", e.Endpoint, e.Kind, e.Err)
	}
	return fmt.Sprintf("external service %s: %s failure", e.Endpoint, e.Kind)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable external failure.
func NewTransient(endpoint string, status int, err error) *ExternalServiceError {
	return &ExternalServiceError{Endpoint: endpoint, Kind: KindTransient, Status: status, Err: err}
}

// NewPermanent wraps err as a non-retryable external failure.
func NewPermanent(endpoint string, status int, err error) *ExternalServiceError {
	return &ExternalServiceError{Endpoint: endpoint, Kind: KindPermanent, Status: status, Err: err}
}

// ErrCircuitOpen is the cause used when a call short-circuits because
// the endpoint's breaker is open. No network attempt was made.
var ErrCircuitOpen = errors.New("circuit breaker open")

// NewCircuitOpen builds the transient error returned while an
// endpoint's breaker is open.
func NewCircuitOpen(endpoint string) *ExternalServiceError {
	return &ExternalServiceError{Endpoint: endpoint, Kind: KindTransient, Err: ErrCircuitOpen}
}

// InternalInvariantError is a hierarchy invariant violation detected at
// runtime. It marks a defect in this program, not bad user input, and
// aborts processing of the affected hierarchy.
type InternalInvariantError struct {
	// HierarchyID is the affected hierarchy.
	HierarchyID string
	// Err is the invariant check failure.
	Err error
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in hierarchy %s: %v", e.HierarchyID, e.Err)
}

// Unwrap exposes the underlying check failure.
func (e *InternalInvariantError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retry-eligible external failure.
func IsTransient(err error) bool {
	var se *ExternalServiceError
	return errors.As(err, &se) && se.Kind == KindTransient
}

// IsPermanent reports whether err is an external failure that must not
// be retried.
func IsPermanent(err error) bool {
	var se *ExternalServiceError
	return errors.As(err, &se) && se.Kind == KindPermanent
}

// IsFatal reports whether err aborts the whole hierarchy's pipeline
// rather than a single item.
func IsFatal(err error) bool {
	var ce *ConfigurationError
	var ve *ValidationError
	var ie *InternalInvariantError
	return errors.As(err, &ce) || errors.As(err, &ve) || errors.As(err, &ie)
}

// ClassifyStatus maps an HTTP-style status code from the tracker to a
// service error kind. Rate limiting (429) and server errors are
// transient; everything else in the 4xx range is permanent.
func ClassifyStatus(status int) ServiceErrorKind {
	switch {
	case status == 429:
		return KindTransient
	case status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// NewFromStatus wraps err as an external failure whose kind follows
// from the status code.
func NewFromStatus(endpoint string, status int, err error) *ExternalServiceError {
	return &ExternalServiceError{Endpoint: endpoint, Kind: ClassifyStatus(status), Status: status, Err: err}
}
