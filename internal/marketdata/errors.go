package marketdata

import "fmt"

// ErrorKind classifies a provider failure for the router's §4.3
// retry/fallback decision and the queue's §4.2 backoff policy.
type ErrorKind int

const (
	// KindRateLimitOrTransient covers 429 and 5xx: retryable, falls
	// over to the next router slot and backs off exponentially.
	KindRateLimitOrTransient ErrorKind = iota
	// KindTransient covers network-level failures (timeouts, resets):
	// retryable the same as rate-limit/5xx.
	KindTransient
	// KindFatal covers bad arguments, 401/403/404, and malformed
	// responses: falls over to the next slot, but never retried on the
	// same slot.
	KindFatal
)

// UpstreamError wraps a provider failure with its classification so
// the queue and router can decide retry/fallback without re-deriving
// it from a bare error value.
type UpstreamError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func NewUpstreamError(kind ErrorKind, provider string, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Provider: provider, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("marketdata: %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the failure should trigger router fallback
// to the next slot (§4.3: everything except truly fatal local errors).
func (e *UpstreamError) Retryable() bool {
	return e.Kind == KindRateLimitOrTransient || e.Kind == KindTransient || e.Kind == KindFatal
}
