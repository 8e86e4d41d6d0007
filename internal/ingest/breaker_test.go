package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivortex/lead-scraper/internal/collect"
	"github.com/shivortex/lead-scraper/internal/model"
)

func TestBreaker_NilAllowsEverything(t *testing.T) {
	b := newBreaker(0, time.Minute)
	assert.Nil(t, b)
	b.record("html", true)
	assert.NoError(t, b.allow("html"))
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	b.record("places", true)
	assert.NoError(t, b.allow("places"))

	b.record("places", true)
	err := b.allow("places")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Contains(t, err.Error(), "places skipped after 2 consecutive failures")

	// Other collectors are unaffected.
	assert.NoError(t, b.allow("html"))
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.record("overpass", true)
	require.Error(t, b.allow("overpass"))

	now = now.Add(time.Minute)
	require.NoError(t, b.allow("overpass"), "probe allowed after cooldown")

	// A failed probe re-opens for a full cooldown.
	b.record("overpass", true)
	require.Error(t, b.allow("overpass"))

	now = now.Add(time.Minute)
	require.NoError(t, b.allow("overpass"))
	b.record("overpass", false)
	assert.NoError(t, b.allow("overpass"))
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := newBreaker(2, time.Minute)
	b.record("html", true)
	b.record("html", false)
	b.record("html", true)
	assert.NoError(t, b.allow("html"))
}

// countingCollector fails every seed and counts Collect calls.
type countingCollector struct {
	calls int
}

func (c *countingCollector) Name() string { return "flaky" }

func (c *countingCollector) Collect(_ context.Context, seed collect.Seed) (*collect.Stream, error) {
	c.calls++
	return nil, collect.Unavailable("flaky", seed, eris.New("503 service unavailable"))
}

func TestRun_BreakerSkipsFailingCollector(t *testing.T) {
	s := newTestStore(t)
	flaky := &countingCollector{}
	healthy := &fixtureCollector{name: "fixture", listings: map[string][]model.RawListing{
		"ok": {listing("Good Co", "1 Good St")},
	}}

	p := New(s, Options{BreakerThreshold: 2, BreakerCooldown: time.Hour})
	report, err := p.Run(context.Background(), []Job{
		{Collector: flaky, Seed: collect.Seed{URL: "a"}},
		{Collector: flaky, Seed: collect.Seed{URL: "b"}},
		{Collector: healthy, Seed: collect.Seed{URL: "ok"}},
		{Collector: flaky, Seed: collect.Seed{URL: "c"}},
		{Collector: flaky, Seed: collect.Seed{URL: "d"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, flaky.calls)
	require.Len(t, report.FailedSources, 4)
	assert.Contains(t, report.FailedSources[2].Error, "circuit open")
	assert.Contains(t, report.FailedSources[3].Error, "circuit open")
	assert.Len(t, report.Sources, 5)
	assert.Equal(t, 1, report.Created)

	// The breaker outlives the run.
	report, err = p.Run(context.Background(), []Job{{Collector: flaky, Seed: collect.Seed{URL: "e"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, flaky.calls)
	require.Len(t, report.FailedSources, 1)
}
