package identity

import "errors"

var (
	// ErrValidation indicates the request supplied neither an email nor a
	// phone number. Surfaced to the transport as a client error before any
	// storage work happens.
	ErrValidation = errors.New("at least one of email or phoneNumber is required")

	// ErrNoPrimary indicates a resolved cluster contained no primary
	// contact. This cannot happen with intact data; it signals a logic or
	// data-corruption bug and fails the request rather than being worked
	// around.
	ErrNoPrimary = errors.New("cluster has no primary contact")

	// ErrCircuitOpen is returned when the storage circuit breaker is open
	// and requests are being rejected without touching the database.
	ErrCircuitOpen = errors.New("storage circuit breaker is open")
)
