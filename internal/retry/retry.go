// Package retry implements the generic retry-with-backoff contract used by
// hosting-service adapters (GitHub's exponential backoff, spec.md §4.4 and
// §8.3). The backoff shape mirrors github.com/hashicorp/go-retryablehttp's
// exponential policy, generalized here to any fallible operation rather
// than only HTTP requests.
package retry

import (
	"time"

	"gitlab.com/tozd/go/errors"
)

// Options configures a retry loop.
type Options struct {
	// Limit is the maximum number of attempts.
	Limit int
	// Start is the delay before the first retry.
	Start time.Duration
	// Scale multiplies the delay after each retry.
	Scale int
	// Sleep is used to wait between attempts; defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 5
	}
	if o.Start <= 0 {
		o.Start = time.Second
	}
	if o.Scale <= 0 {
		o.Scale = 2
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// backoffExhaustedMessage is the message used when every attempt up to
// Options.Limit failed with a retryable error.
const backoffExhaustedMessage = "failure even after exponential backoff"

// IsRetryable classifies an error as retriable or terminal.
type IsRetryable func(error) bool

// Do calls fn until it succeeds, it fails with a non-retryable error, or
// the attempt limit is reached. A non-retryable error is surfaced
// immediately without sleeping.
func Do[T any](opts Options, isRetryable IsRetryable, fn func() (T, error)) (T, error) {
	opts = opts.withDefaults()

	timeout := opts.Start
	var zero T
	for attempt := 1; attempt <= opts.Limit; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		if attempt == opts.Limit {
			break
		}
		opts.Sleep(timeout)
		timeout *= time.Duration(opts.Scale)
	}
	return zero, errors.New(backoffExhaustedMessage)
}
