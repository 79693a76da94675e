package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LinearBackOff waits attempt*Base before the attempt-th retry, capped at Max
// when Max is positive.
type LinearBackOff struct {
	Base    time.Duration
	Max     time.Duration
	attempt int
}

var _ backoff.BackOff = (*LinearBackOff)(nil)

func NewLinearBackOff(base, max time.Duration) *LinearBackOff {
	return &LinearBackOff{Base: base, Max: max}
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return LinearDelay(b.attempt, b.Base, b.Max)
}

func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

func LinearDelay(attempt int, base, max time.Duration) time.Duration {
	d := time.Duration(attempt) * base
	if max > 0 && d > max {
		return max
	}
	return d
}
