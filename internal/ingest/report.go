package ingest

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Report summarizes one ingestion run. Counts are exact:
// Created + Updated == Attempted - Skipped.
type Report struct {
	RunID         string          `json:"run_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Attempted     int             `json:"attempted"`
	Created       int             `json:"created"`
	Updated       int             `json:"updated"`
	Skipped       int             `json:"skipped"`
	FailedSources []FailedSource  `json:"failed_sources"`
	Sources       []*SourceReport `json:"sources"`
}

// FailedSource records a job whose collector signalled an unrecoverable
// failure. Listings stored before the failure stay stored.
type FailedSource struct {
	Collector string `json:"collector"`
	Seed      string `json:"seed"`
	Error     string `json:"error"`
}

// SourceReport holds the counts for one job. Malformed counts items the
// collector itself could not parse; they never reach the pipeline and are
// not part of Attempted.
type SourceReport struct {
	Collector  string        `json:"collector"`
	Seed       string        `json:"seed"`
	Attempted  int           `json:"attempted"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Malformed  int           `json:"malformed"`
	Failed     bool          `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
	FieldDrops int           `json:"field_drops"`
}

func (r *Report) addSource(s *SourceReport) {
	r.Sources = append(r.Sources, s)
	r.Attempted += s.Attempted
	r.Created += s.Created
	r.Updated += s.Updated
	r.Skipped += s.Skipped
}

func (r *Report) fail(s *SourceReport, err error) {
	s.Failed = true
	r.FailedSources = append(r.FailedSources, FailedSource{
		Collector: s.Collector,
		Seed:      s.Seed,
		Error:     err.Error(),
	})
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Log writes the report to the operational log.
func (r *Report) Log(log *zap.Logger) {
	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.Int("attempted", r.Attempted),
		zap.Int("created", r.Created),
		zap.Int("updated", r.Updated),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed_sources", len(r.FailedSources)),
		zap.Duration("duration", r.Duration()),
	}
	if len(r.FailedSources) > 0 {
		log.Warn("ingest: run finished with failed sources", fields...)
	} else {
		log.Info("ingest: run finished", fields...)
	}

	for _, s := range r.Sources {
		log.Debug("ingest: source summary",
			zap.String("run_id", r.RunID),
			zap.String("collector", s.Collector),
			zap.String("seed", s.Seed),
			zap.Int("attempted", s.Attempted),
			zap.Int("created", s.Created),
			zap.Int("updated", s.Updated),
			zap.Int("skipped", s.Skipped),
			zap.Int("malformed", s.Malformed),
			zap.Int("field_drops", s.FieldDrops),
			zap.Bool("failed", s.Failed),
		)
	}
	for _, f := range r.FailedSources {
		log.Warn("ingest: source unavailable",
			zap.String("run_id", r.RunID),
			zap.String("collector", f.Collector),
			zap.String("seed", f.Seed),
			zap.String("error", f.Error),
		)
	}
}

// Format renders a human-readable summary for the CLI.
func (r *Report) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ingestion run %s (%s)\n", r.RunID, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "  attempted: %d  created: %d  updated: %d  skipped: %d\n",
		r.Attempted, r.Created, r.Updated, r.Skipped)

	if len(r.Sources) > 0 {
		b.WriteString("Sources:\n")
		for _, s := range r.Sources {
			status := "ok"
			if s.Failed {
				status = "FAILED"
			}
			fmt.Fprintf(&b, "  - %s %s: %s, %d attempted, %d created, %d updated, %d skipped, %d malformed\n",
				s.Collector, s.Seed, status, s.Attempted, s.Created, s.Updated, s.Skipped, s.Malformed)
		}
	}

	if len(r.FailedSources) > 0 {
		b.WriteString("Failed sources:\n")
		for _, f := range r.FailedSources {
			fmt.Fprintf(&b, "  - %s %s: %s\n", f.Collector, f.Seed, f.Error)
		}
	}
	return b.String()
}
