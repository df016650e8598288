package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Outcome summarises what Dispatch did with one invocation.
type Outcome int

const (
	// Ignored means the event was not a command invocation.
	Ignored Outcome = iota
	// NotFound means an interaction named a command the registry does not hold.
	NotFound
	// Rejected means a policy check failed and the caller was told why.
	Rejected
	// Replied means the entry point succeeded and its reply, if any, was sent.
	Replied
	// Failed means the entry point returned an error or panicked.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case NotFound:
		return "not-found"
	case Rejected:
		return "rejected"
	case Replied:
		return "replied"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ErrUnknownCommand is returned with NotFound.
var ErrUnknownCommand = errors.New("unknown command")

// ViolationKind names the policy check that rejected an invocation.
type ViolationKind string

const (
	ViolationArity      ViolationKind = "arity"
	ViolationPermission ViolationKind = "permission"
	ViolationCooldown   ViolationKind = "cooldown"
	ViolationGuildOnly  ViolationKind = "guild-only"
)

// Violation is a policy failure. Message is what the caller is shown.
type Violation struct {
	Kind    ViolationKind
	Command string
	Message string
	// Missing is the first missing permission token, for ViolationPermission.
	Missing string
	// Wait is the remaining cooldown, for ViolationCooldown.
	Wait time.Duration
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s violation: %s", v.Command, v.Kind, v.Message)
}

// HandlerFailure wraps an error or panic from an entry point.
type HandlerFailure struct {
	ID      string
	Command string
	Err     error
}

func (f *HandlerFailure) Error() string {
	return fmt.Sprintf("command %q (%s) failed: %v", f.Command, f.ID, f.Err)
}

func (f *HandlerFailure) Unwrap() error { return f.Err }
