package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for remote operations.
var (
	// ErrNotConfigured is returned by every operation when the URL or key is absent.
	ErrNotConfigured = errors.New("remote store not configured")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("remote store unavailable")
)

// IsNotConfigured reports whether err came from an unconfigured store.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsUnavailable reports whether err looks like a connectivity failure.
// Such failures are worth retrying on the next refresh.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// wrap annotates a driver error with the failed action and marks connectivity
// failures with ErrUnavailable.
func wrap(action string, err error) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: failed to %s: %w", ErrUnavailable, action, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// Result is a user-facing summary of a remote operation.
type Result struct {
	Success bool
	Message string
}

// Describe turns an operation's error into a Result; okMsg is used on success.
func Describe(err error, okMsg string) Result {
	switch {
	case err == nil:
		return Result{Success: true, Message: okMsg}
	case IsNotConfigured(err):
		return Result{Message: "Cloud storage is not configured: " + err.Error()}
	case IsUnavailable(err):
		return Result{Message: "Cloud storage is unreachable: " + err.Error()}
	default:
		return Result{Message: err.Error()}
	}
}
