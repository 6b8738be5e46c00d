package reconcile

import (
	"errors"
	"fmt"
)

// Phase sentinels, checked with errors.Is.
var (
	// ErrFetch is returned when the remote collection could not be read.
	// Nothing was deleted or inserted.
	ErrFetch = errors.New("failed to fetch remote data")

	// ErrDelete is returned when removing remote rows failed.
	ErrDelete = errors.New("failed to clear remote data")

	// ErrReinsert is returned when writing the merged set to the remote failed.
	ErrReinsert = errors.New("failed to write merged data")
)

// Phase names the step of a reconciliation.
type Phase string

const (
	PhaseFetch    Phase = "fetch"
	PhaseDelete   Phase = "delete"
	PhaseReinsert Phase = "reinsert"
)

func (p Phase) sentinel() error {
	switch p {
	case PhaseFetch:
		return ErrFetch
	case PhaseDelete:
		return ErrDelete
	default:
		return ErrReinsert
	}
}

// PhaseError reports which step of a reconciliation failed.
type PhaseError struct {
	Phase    Phase
	Strategy Strategy

	// RemoteEmptied is set when the delete succeeded but the reinsert did not.
	RemoteEmptied bool

	Err error
}

func (e *PhaseError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Phase.sentinel(), e.Err)
	if e.RemoteEmptied {
		msg += " (remote data for this user is now empty; local data is intact)"
	}
	return msg
}

// Unwrap exposes both the phase sentinel and the underlying cause.
func (e *PhaseError) Unwrap() []error {
	return []error{e.Phase.sentinel(), e.Err}
}

// IsRemoteDegraded reports whether err left the remote emptied: a reinsert failure
// after a successful delete under StrategyReplace.
func IsRemoteDegraded(err error) bool {
	var pe *PhaseError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.RemoteEmptied
}

// IsRetryable reports whether running the reconciliation again may succeed without
// any other action. Fetch and delete failures leave the remote as it was.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrFetch) || errors.Is(err, ErrDelete) || IsRemoteDegraded(err)
}
