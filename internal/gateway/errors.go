package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrSuppressed means the recipient's stored status blocks sends.
	ErrSuppressed = errors.New("recipient is suppressed")
	// ErrAuthCooldown means sends are short-circuited after a provider 401.
	ErrAuthCooldown = errors.New("delivery auth cooldown active")
	// ErrCircuitOpen means the circuit breaker skipped the call.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrInvalidRecipient means the recipient address is empty or malformed.
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// ProviderError is a non-2xx reply from the delivery provider. Retry
// exhaustion on a transient status returns the last failing reply as a
// ProviderError rather than a transport error, so callers can always tell
// "provider said no" from "transport failed".
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected message with status %d", e.StatusCode)
}

// Transient reports whether the status is worth retrying
func (e *ProviderError) Transient() bool {
	return transientStatus(e.StatusCode)
}

func transientStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}
