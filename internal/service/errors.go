package service

import "errors"

var (
	// ErrInsufficientSignal means an item carries no fragments and no cues,
	// so there is nothing to prime with. Not retried; the item waits for
	// natural tier escalation.
	ErrInsufficientSignal = errors.New("item has no fragments or cues to prime with")

	// ErrSessionInFlight means a priming session is already running for the
	// item. Callers drop the request silently.
	ErrSessionInFlight = errors.New("priming session already in flight for item")

	ErrUnknownTier = errors.New("unknown urgency tier")
)
