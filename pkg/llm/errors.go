package llm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProviderUnavailable indicates the provider endpoint is unreachable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrAuth indicates missing or rejected credentials. Auth errors are
	// fatal at engine startup; the engine refuses to deliberate without a
	// working model.
	ErrAuth = errors.New("authentication failed")

	// ErrTransient indicates a retryable provider error.
	ErrTransient = errors.New("transient provider error")
)

// RateLimitedError reports that the provider rejected a request due to rate
// limiting. Callers may retry once the advertised reset instant has passed;
// the coordinator's cooldown absorbs the wait so runs never fail on it.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// AsRateLimited extracts a RateLimitedError from an error chain.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
