package types

import (
	"context"
	"errors"
)

var (
	ErrDataUnavailable  = errors.New("destination dataset unavailable")
	ErrMalformedRecord  = errors.New("malformed destination record")
	ErrRetrievalFailure = errors.New("retrieval failed")
	ErrWeatherFetch     = errors.New("weather fetch failed")
	ErrInvalidCountry   = errors.New("unsupported country")
	ErrInvalidRequest   = errors.New("invalid itinerary request")
)

// PipelineError tags an error as worth retrying or not.
type PipelineError struct {
	Err       error
	Transient bool
}

func (e *PipelineError) Error() string { return e.Err.Error() }

func (e *PipelineError) Unwrap() error { return e.Err }

// Transient marks err as retryable. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Err: err, Transient: true}
}

// Permanent marks err as final. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Err: err, Transient: false}
}

// IsTransient reports whether the pipeline may retry after err.
// Tagged errors win. Untagged errors are retryable unless they carry one of
// the permanent sentinels or a caller cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	switch {
	case errors.Is(err, ErrDataUnavailable),
		errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrInvalidCountry),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
