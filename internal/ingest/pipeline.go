// Package ingest runs collectors against seeds, normalizes what they produce
// and merges it into the record store.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/collect"
	"github.com/shivortex/lead-scraper/internal/model"
)

// DefaultCollectorTimeout bounds a single job when Options leaves it unset.
const DefaultCollectorTimeout = 60 * time.Second

// Upserter is the part of the record store the pipeline writes through.
type Upserter interface {
	Upsert(ctx context.Context, lead model.Lead) (id int64, created bool, err error)
}

// Job pairs a collector with the seed it runs against.
type Job struct {
	Collector collect.Collector
	Seed      collect.Seed
}

// Options configures a Pipeline.
type Options struct {
	// CollectorTimeout bounds each job: the Collect call and consuming its
	// stream. Store writes are not bounded by it.
	CollectorTimeout time.Duration

	// BreakerThreshold is the number of consecutive failed sources after
	// which a collector's remaining jobs are skipped. Zero disables it.
	BreakerThreshold int
	// BreakerCooldown is how long a tripped collector is skipped. The
	// breaker persists across runs of the same Pipeline.
	BreakerCooldown time.Duration
}

// Pipeline runs ingestion jobs sequentially.
type Pipeline struct {
	store   Upserter
	timeout time.Duration
	breaker *breaker
	log     *zap.Logger
}

// New creates a pipeline writing to s.
func New(s Upserter, opts Options) *Pipeline {
	if opts.CollectorTimeout <= 0 {
		opts.CollectorTimeout = DefaultCollectorTimeout
	}
	return &Pipeline{
		store:   s,
		timeout: opts.CollectorTimeout,
		breaker: newBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		log:     zap.L().With(zap.String("component", "ingest")),
	}
}

// Run executes jobs in order. A job whose collector fails is recorded in the
// report's failed sources and the run moves on. A store failure or a
// cancelled ctx aborts the run; the partial report is returned with the
// error.
func (p *Pipeline) Run(ctx context.Context, jobs []Job) (*Report, error) {
	report := &Report{
		RunID:         uuid.New().String(),
		StartedAt:     time.Now().UTC(),
		FailedSources: []FailedSource{},
		Sources:       []*SourceReport{},
	}
	log := p.log.With(zap.String("run_id", report.RunID))
	log.Info("ingest: run starting", zap.Int("jobs", len(jobs)))

	defer func() { report.FinishedAt = time.Now().UTC() }()

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "ingest: run cancelled")
		}

		src := &SourceReport{Collector: job.Collector.Name(), Seed: job.Seed.String()}
		if err := p.breaker.allow(src.Collector); err != nil {
			log.Warn("ingest: collector skipped", zap.String("collector", src.Collector), zap.String("seed", src.Seed), zap.Error(err))
			report.fail(src, err)
			report.addSource(src)
			continue
		}

		start := time.Now()
		err := p.runJob(ctx, job, src, report)
		src.Duration = time.Since(start)
		report.addSource(src)

		log.Debug("ingest: job finished",
			zap.Int("job", i+1),
			zap.String("collector", src.Collector),
			zap.String("seed", src.Seed),
			zap.Int("attempted", src.Attempted),
			zap.Duration("duration", src.Duration),
		)

		if err != nil {
			return report, err
		}
		p.breaker.record(src.Collector, src.Failed)
	}

	return report, nil
}

// runJob consumes one job. It returns an error only for failures that must
// abort the run; collector failures are recorded on the report.
func (p *Pipeline) runJob(ctx context.Context, job Job, src *SourceReport, report *Report) error {
	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stream, err := job.Collector.Collect(jobCtx, job.Seed)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "ingest: run cancelled")
		}
		report.fail(src, collect.Unavailable(src.Collector, job.Seed, err))
		return nil
	}

	var storeErr error
	for raw := range stream.All(jobCtx) {
		src.Attempted++

		lead, dropped := Normalize(raw)
		src.FieldDrops += len(dropped)
		if model.Blank(lead.Name) || model.Blank(lead.SourceURL) {
			src.Skipped++
			continue
		}

		_, created, err := p.store.Upsert(ctx, lead)
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				p.log.Warn("ingest: store rejected lead", zap.String("collector", src.Collector), zap.Error(err))
				src.Skipped++
				continue
			}
			// The lead never reached the store.
			src.Attempted--
			storeErr = eris.Wrapf(err, "ingest: upsert from %s", src.Collector)
			break
		}
		if created {
			src.Created++
		} else {
			src.Updated++
		}
	}
	src.Malformed = stream.Skipped()

	if storeErr != nil {
		return storeErr
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "ingest: run cancelled")
		}
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			err = collect.Unavailable(src.Collector, job.Seed, eris.Wrapf(err, "timed out after %s", p.timeout))
		}
		report.fail(src, err)
	}
	return nil
}
