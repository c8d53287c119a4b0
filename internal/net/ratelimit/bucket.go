// Package ratelimit provides admission control for outbound calls to
// rate-limited market-data providers.
//
// Bucket is a daily-quota token bucket with continuous refill. All acquires
// funnel through a single admission goroutine, so concurrent callers are
// served strictly first-in-first-out and can never jointly overdraw the
// bucket. Tokens are consumed, not refundable: a caller that times out at a
// higher level must not assume its token was returned.
package ratelimit

import (
	"errors"
	"math"
	"time"
)

const (
	// msPerDay spreads the full quota across 24h of continuous refill.
	msPerDay = 86_400_000

	// maxWait caps a single admission sleep; the worker re-checks the
	// bucket after each wait.
	maxWait = 60_000 * time.Millisecond
)

// ErrClosed is returned by Acquire after the bucket has been shut down.
var ErrClosed = errors.New("ratelimit: bucket closed")

// Bucket is a token bucket sized to a daily request quota.
type Bucket struct {
	maxTokens   float64
	refillPerMS float64

	acquires chan chan struct{}
	queries  chan chan int
	stop     chan struct{}

	// worker-owned state
	tokens     float64
	lastRefill time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewBucket creates a bucket holding maxTokens that refills continuously at
// maxTokens per day, and starts its admission worker.
func NewBucket(maxTokens int) *Bucket {
	return newBucket(maxTokens, time.Now, time.Sleep)
}

func newBucket(maxTokens int, now func() time.Time, sleep func(time.Duration)) *Bucket {
	if maxTokens < 1 {
		maxTokens = 1
	}
	b := &Bucket{
		maxTokens:   float64(maxTokens),
		refillPerMS: float64(maxTokens) / msPerDay,
		acquires:    make(chan chan struct{}),
		queries:     make(chan chan int),
		stop:        make(chan struct{}),
		tokens:      float64(maxTokens),
		now:         now,
		sleep:       sleep,
	}
	b.lastRefill = now()
	go b.admit()
	return b
}

// Acquire blocks until a token is available and consumes it. There is no
// cancellation for an in-flight wait; the only error is ErrClosed.
func (b *Bucket) Acquire() error {
	done := make(chan struct{})
	select {
	case b.acquires <- done:
	case <-b.stop:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-b.stop:
		return ErrClosed
	}
}

// Remaining reports the refilled whole-token count without consuming one.
// Never negative.
func (b *Bucket) Remaining() int {
	reply := make(chan int, 1)
	select {
	case b.queries <- reply:
		return <-reply
	case <-b.stop:
		return 0
	}
}

// Close stops the admission worker. Pending and future acquires fail with
// ErrClosed.
func (b *Bucket) Close() {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
}

// admit is the single admission worker. Serving one acquire at a time is
// what prevents two concurrent callers from both observing an available
// token.
func (b *Bucket) admit() {
	for {
		select {
		case done := <-b.acquires:
			b.refill()
			if b.tokens >= 1 {
				b.tokens--
				close(done)
				continue
			}

			waitMS := math.Ceil((1 - b.tokens) / b.refillPerMS)
			wait := time.Duration(waitMS) * time.Millisecond
			if wait > maxWait {
				wait = maxWait
			}
			b.sleep(wait)

			b.refill()
			b.tokens--
			if b.tokens < 0 {
				b.tokens = 0
			}
			close(done)
		case reply := <-b.queries:
			b.refill()
			reply <- int(b.tokens)
		case <-b.stop:
			return
		}
	}
}

func (b *Bucket) refill() {
	now := b.now()
	elapsedMS := float64(now.Sub(b.lastRefill)) / float64(time.Millisecond)
	if elapsedMS <= 0 {
		return
	}
	b.tokens = math.Min(b.maxTokens, b.tokens+elapsedMS*b.refillPerMS)
	b.lastRefill = now
}
