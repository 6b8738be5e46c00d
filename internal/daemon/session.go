package daemon

import (
	"errors"
	"fmt"
)

// Mode says whether writes are mirrored to the remote.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// ParseMode maps a user-supplied value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal:
		return ModeLocal, nil
	case ModeCloud:
		return ModeCloud, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want local or cloud)", s)
	}
}

// Session is the explicit sync state: the signed-in user and the data mode.
// ModeSet is false until a mode has been chosen for this installation.
type Session struct {
	UserID  string
	Email   string
	Mode    Mode
	ModeSet bool
}

// SignedIn reports whether a user is present.
func (s Session) SignedIn() bool { return s.UserID != "" }

// Cloud reports whether writes should be mirrored.
func (s Session) Cloud() bool { return s.SignedIn() && s.Mode == ModeCloud }

// Decision is what Login asks the caller to confirm with the user.
type Decision int

const (
	// DecisionNone needs no prompt.
	DecisionNone Decision = iota
	// DecisionAdoptCloud: the remote has data; offer to replace local data with it.
	DecisionAdoptCloud
	// DecisionPushLocal: the remote is empty but local data exists; offer to upload it.
	DecisionPushLocal
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionAdoptCloud:
		return "adopt_cloud"
	case DecisionPushLocal:
		return "push_local"
	default:
		return "unknown"
	}
}

// ModeStore persists the chosen mode and the ids waiting for a mirror.
// local.Prefs satisfies it.
type ModeStore interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Unset(name string) error
}

const (
	// modePref is the preference name holding the mode.
	modePref = "sync-mode"

	// pendingPref holds a JSON array of ids whose latest local write has not
	// reached the remote yet.
	pendingPref = "pending-mirror"
)

// ErrNoUser is returned by operations that need a signed-in user.
var ErrNoUser = errors.New("not signed in")

// MirrorError reports that a local write succeeded but its remote mirror failed.
// The local result returned alongside it is valid.
type MirrorError struct {
	Op       string
	PersonID string
	Err      error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("saved locally, but failed to %s %s in the cloud: %v", e.Op, e.PersonID, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

// IsMirrorError reports whether err only concerns the remote mirror.
func IsMirrorError(err error) bool {
	var me *MirrorError
	return errors.As(err, &me)
}
