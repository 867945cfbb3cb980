// Package errs names the error kinds from the ingestion core's error
// taxonomy (spec §7) so callers can branch on kind with errors.Is rather
// than string matching.
package errs

import "errors"

var (
	// ErrTransient marks an error the Retry Manager should requeue:
	// dropped WebSocket, RPC timeout, unreachable store.
	ErrTransient = errors.New("transient error")

	// ErrDuplicate marks a unique-index violation on write. Callers treat
	// this identically to success.
	ErrDuplicate = errors.New("duplicate key")

	// ErrDiscriminatorMismatch marks a log line whose discriminator
	// matched no registered decoder. Never logged above debug.
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")

	// ErrShapeMismatch marks a Borsh decode failure: the payload did not
	// match the registered decoder's expected layout.
	ErrShapeMismatch = errors.New("binary shape mismatch")

	// ErrValidation marks a decoded record that failed its type-specific
	// range checks.
	ErrValidation = errors.New("validation failed")

	// ErrPoison marks a record that persistently fails to persist and has
	// exhausted its retry budget.
	ErrPoison = errors.New("poison event")

	// ErrConfiguration marks a fatal startup misconfiguration.
	ErrConfiguration = errors.New("configuration error")

	// ErrReconnectExhausted marks a bounded exponential-backoff reconnect
	// loop that hit its configured attempt cap without a successful
	// subscription. Unlike the other transport errors, this one escalates
	// to the supervisor rather than being retried further.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)
