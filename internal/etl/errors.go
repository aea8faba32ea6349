package etl

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by sources, the engine and the resolver.
// Callers test them with errors.Is.
var (
	ErrNetworkFailure   = errors.New("network failure")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrEmptyResult      = errors.New("empty result")
	ErrNodeNotFound     = errors.New("node not found")
	ErrUnknownMetric    = errors.New("unknown metric")
)

// UnknownMetricError names the rejected metric and the columns that would have matched.
type UnknownMetricError struct {
	Metric    string
	Available ColumnSchema
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q, available: %s", e.Metric, e.Available)
}

func (e *UnknownMetricError) Is(target error) bool { return target == ErrUnknownMetric }

// NetworkError wraps err as ErrNetworkFailure while keeping the cause in the message.
func NetworkError(err error) error {
	if err == nil || errors.Is(err, ErrNetworkFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
}

// MalformedError wraps err as ErrMalformedPayload.
func MalformedError(err error) error {
	if err == nil || errors.Is(err, ErrMalformedPayload) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
}

// Cause strips the kind prefix so placeholders read "Error: http 503: ..." rather
// than "Error: network failure: http 503: ...".
func Cause(err error) string {
	if err == nil {
		return ""
	}
	// Only the outermost error is inspected so that context added around a
	// kind-wrapped error stays in the message.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) == 2 && (errs[0] == ErrNetworkFailure || errs[0] == ErrMalformedPayload) {
			return errs[1].Error()
		}
	}
	return err.Error()
}
