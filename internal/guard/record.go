package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType classifies a guarded failure.
type ErrorType string

const (
	ErrorTimeout                ErrorType = "timeout"
	ErrorConnectionFailure      ErrorType = "connection_failure"
	ErrorAuthenticationFailure  ErrorType = "authentication_failure"
	ErrorValidationFailure      ErrorType = "validation_failure"
	ErrorResourceExhaustion     ErrorType = "resource_exhaustion"
	ErrorSecurityViolation      ErrorType = "security_violation"
	ErrorDataCorruption         ErrorType = "data_corruption"
	ErrorSystemPanic            ErrorType = "system_panic"
	ErrorExternalServiceFailure ErrorType = "external_service_failure"
	ErrorConfigurationError     ErrorType = "configuration_error"
	ErrorUnknown                ErrorType = "unknown"
)

// Severity orders error records from least to most urgent.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	for v := SeverityLow; v <= SeverityFatal; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Well-known context keys copied into the correlation fields of an ErrorRecord.
const (
	ContextCorrelationID = "correlation_id"
	ContextTransactionID = "transaction_id"
	ContextDeviceID      = "device_id"
)

// ErrorRecord is the classified outcome of a failed guarded execution.
// It implements error and unwraps to the underlying cause.
type ErrorRecord struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Path           CriticalPath      `json:"path"`
	Type           ErrorType         `json:"type"`
	Message        string            `json:"message"`
	Context        map[string]string `json:"context,omitempty"`
	Severity       Severity          `json:"severity"`
	RetryCount     int               `json:"retry_count"`
	MaxRetries     int               `json:"max_retries"`
	Resolved       bool              `json:"resolved"`
	ResolutionTime *time.Time        `json:"resolution_time,omitempty"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	DeviceID       string            `json:"device_id,omitempty"`

	cause error
}

func (r *ErrorRecord) Error() string {
	return fmt.Sprintf("%s: %s: %s", r.Path, r.Type, r.Message)
}

func (r *ErrorRecord) Unwrap() error {
	return r.cause
}

var (
	// ErrCircuitOpen is the cause of records produced when the breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrTimeout is the cause of records produced when an attempt exceeded the path timeout.
	ErrTimeout = errors.New("operation timed out")

	// ErrErrorNotFound is returned by ResolveError for unknown or evicted ids.
	ErrErrorNotFound = errors.New("error record not found")
)

// panicError carries a value recovered from a guarded call.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

type classifier struct {
	errType  ErrorType
	keywords []string
}

// classifiers are checked in order against the lowercase error message.
var classifiers = []classifier{
	{ErrorTimeout, []string{"timeout", "timed out", "deadline"}},
	{ErrorConnectionFailure, []string{"connection", "refused", "unreachable", "network", "dial", "eof"}},
	{ErrorAuthenticationFailure, []string{"unauthorized", "forbidden", "auth", "signature"}},
	{ErrorValidationFailure, []string{"invalid", "validation", "malformed"}},
	{ErrorResourceExhaustion, []string{"exhausted", "too many", "rate limit", "out of memory", "capacity"}},
	{ErrorSecurityViolation, []string{"security", "violation", "tamper"}},
	{ErrorDataCorruption, []string{"corrupt", "checksum"}},
	{ErrorConfigurationError, []string{"config"}},
}

// classify maps an error to an ErrorType from its identity first, then from its message.
func classify(err error, critical bool) ErrorType {
	var p *panicError
	switch {
	case errors.As(err, &p):
		return ErrorSystemPanic
	case errors.Is(err, ErrCircuitOpen):
		return ErrorExternalServiceFailure
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, c := range classifiers {
		for _, kw := range c.keywords {
			if strings.Contains(msg, kw) {
				return c.errType
			}
		}
	}

	if critical {
		return ErrorExternalServiceFailure
	}
	return ErrorUnknown
}

// severityOf derives the severity of a failure of the given type.
func severityOf(t ErrorType, critical bool) Severity {
	switch t {
	case ErrorSystemPanic:
		return SeverityFatal
	case ErrorSecurityViolation, ErrorDataCorruption:
		return SeverityCritical
	}

	if !critical {
		return SeverityLow
	}

	switch t {
	case ErrorAuthenticationFailure, ErrorValidationFailure, ErrorUnknown:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// noRetry reports whether a failure of type t must not be retried on a path with cfg.
func noRetry(t ErrorType, cfg PathConfig) bool {
	if t == ErrorSystemPanic {
		return true
	}
	if cfg.Fallback != FallbackFailFast {
		return false
	}
	switch t {
	case ErrorAuthenticationFailure, ErrorSecurityViolation, ErrorValidationFailure:
		return true
	default:
		return false
	}
}
