package fixtest

import (
	"time"

	"github.com/cenkalti/backoff/v3"
)

// Retry runs op with exponential backoff until it succeeds or d elapses.
func Retry(d time.Duration, op backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = d
	return backoff.Retry(op, bo)
}
