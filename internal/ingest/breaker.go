package ingest

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen marks a job that was not attempted because its collector
// failed too many times in a row.
var ErrCircuitOpen = eris.New("collector circuit open")

// DefaultBreakerCooldown is how long an open collector stays skipped before
// one probe job is let through.
const DefaultBreakerCooldown = 10 * time.Minute

// breaker tracks consecutive source failures per collector. After threshold
// failures the collector is skipped until cooldown has passed; the next job
// is then a probe whose outcome closes or re-opens the circuit.
type breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures map[string]int
	openedAt map[string]time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		return nil
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		failures:  make(map[string]int),
		openedAt:  make(map[string]time.Time),
	}
}

// allow returns nil when a job for collector may run. A nil breaker allows
// everything.
func (b *breaker) allow(collector string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.failures[collector]
	if n < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt[collector]) >= b.cooldown {
		return nil
	}
	return eris.Wrapf(ErrCircuitOpen, "%s skipped after %d consecutive failures", collector, n)
}

// record updates the failure streak for collector.
func (b *breaker) record(collector string, failed bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !failed {
		delete(b.failures, collector)
		delete(b.openedAt, collector)
		return
	}
	b.failures[collector]++
	if b.failures[collector] >= b.threshold {
		b.openedAt[collector] = b.now()
	}
}
