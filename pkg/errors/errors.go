package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a single failed HTTP attempt
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeStatus      ErrorType = "status"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents one failed request attempt with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// IsRetryable checks if an error type should be retried.
// Portals answer overload with arbitrary statuses, so every non-2xx is retried.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeStatus:
		return true
	default:
		return false
	}
}

// TypeForStatus maps a non-2xx HTTP status to an ErrorType
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeStatus
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	if statusCode >= 200 && statusCode < 300 {
		return false
	}
	return IsRetryable(TypeForStatus(statusCode))
}

// Kind is the run-level failure taxonomy used by the summary
type Kind string

const (
	KindTransportExhausted Kind = "transport_exhausted"
	KindFailedVerification Kind = "failed_verification"
	KindNavigationFailed   Kind = "navigation_failed"
	KindUnknownOfficer     Kind = "unknown_officer"
	KindStructuralParse    Kind = "structural_parse"
	KindStaleCandidate     Kind = "stale_candidate_skipped"
	KindStorage            Kind = "storage"
	KindCanceled           Kind = "canceled"
	KindUnknown            Kind = "unknown"
)

// Kinds lists every Kind in display order
var Kinds = []Kind{
	KindTransportExhausted,
	KindFailedVerification,
	KindNavigationFailed,
	KindUnknownOfficer,
	KindStructuralParse,
	KindStaleCandidate,
	KindStorage,
	KindCanceled,
	KindUnknown,
}

// TransportExhaustedError is returned once every transport attempt failed
type TransportExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportExhaustedError) Error() string {
	return fmt.Sprintf("transport exhausted after %d attempts for %s: %v", e.Attempts, e.URL, e.Err)
}

func (e *TransportExhaustedError) Unwrap() error { return e.Err }

// VerificationError means a fetched page did not contain its expected marker
type VerificationError struct {
	URL      string
	Marker   string
	Attempts int
}

func (e *VerificationError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("failed verification of %s: marker %q missing after %d attempts", e.URL, e.Marker, e.Attempts)
	}
	return fmt.Sprintf("failed verification of %s: marker %q missing", e.URL, e.Marker)
}

// NavigationError means the session bootstrap could not complete a stage
type NavigationError struct {
	Stage string
	Err   error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed at %s: %v", e.Stage, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// UnknownOfficerError reports an operator-supplied officer name missing from the roster
type UnknownOfficerError struct {
	Name string
	// Suggestion is the closest roster name, if any is close enough
	Suggestion string
}

func (e *UnknownOfficerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown judicial officer %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown judicial officer %q", e.Name)
}

// ParseError is a structural problem in one table of a case page
type ParseError struct {
	Table  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structural parse error in %s table: %s", e.Table, e.Reason)
}

// StaleCandidateError reports a candidate record older than the persisted one.
// It is informational.
type StaleCandidateError struct {
	Code      string
	Existing  string
	Candidate string
}

func (e *StaleCandidateError) Error() string {
	return fmt.Sprintf("stale candidate for %s: captured %s, stored record captured %s", e.Code, e.Candidate, e.Existing)
}

// StorageError wraps a persistence failure for a single case
type StorageError struct {
	Code string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Code, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrCanceled marks work abandoned because the run was cancelled
var ErrCanceled = stderrors.New("run canceled")

// KindOf classifies err into the run taxonomy
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var (
		navErr       *NavigationError
		exhaustedErr *TransportExhaustedError
		verifyErr    *VerificationError
		officerErr   *UnknownOfficerError
		parseErr     *ParseError
		staleErr     *StaleCandidateError
		storageErr   *StorageError
	)

	// Navigation wraps transport and verification failures, so check it first.
	switch {
	case stderrors.As(err, &navErr):
		return KindNavigationFailed
	case stderrors.As(err, &exhaustedErr):
		return KindTransportExhausted
	case stderrors.As(err, &verifyErr):
		return KindFailedVerification
	case stderrors.As(err, &officerErr):
		return KindUnknownOfficer
	case stderrors.As(err, &parseErr):
		return KindStructuralParse
	case stderrors.As(err, &staleErr):
		return KindStaleCandidate
	case stderrors.As(err, &storageErr):
		return KindStorage
	case stderrors.Is(err, ErrCanceled), stderrors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	return KindOf(err) == KindNavigationFailed
}
