package actions

import "errors"

var (
	// ErrNotPermitted is returned when the current user lacks the capability.
	ErrNotPermitted = errors.New("not permitted")

	// ErrAlreadyVoted is returned for a second vote on a comment in one session.
	ErrAlreadyVoted = errors.New("already voted on this comment")

	// ErrInFlight is returned while another action on the same item runs.
	ErrInFlight = errors.New("action already in progress")

	// ErrNotConfirmed is returned when a destructive action was declined.
	ErrNotConfirmed = errors.New("action not confirmed")

	// ErrInvalidTransition is returned when the item is not in a state the
	// action applies to.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound is returned when the target is not in the local view.
	ErrNotFound = errors.New("not found")
)
