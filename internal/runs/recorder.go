package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Sink receives finished runs. The applier and the scheduler both
// write through it.
type Sink interface {
	Record(ctx context.Context, run JobRun) error
}

// Observer is notified of every recorded run (metrics hook).
type Observer interface {
	ObserveRun(run JobRun)
}

// Recorder persists runs and serves the history queries behind the
// introspection surface. A failed write is logged and returned, never
// escalated: the execution it describes already happened.
type Recorder struct {
	DB  *gorm.DB
	Log zerolog.Logger
	Obs Observer
}

func (r *Recorder) Record(ctx context.Context, run JobRun) error {
	if r.Obs != nil {
		r.Obs.ObserveRun(run)
	}
	if err := r.DB.WithContext(ctx).Create(&run).Error; err != nil {
		r.Log.Error().Err(err).
			Str("job", run.JobName).
			Str("run_id", run.ID).
			Msg("failed to persist job run")
		return fmt.Errorf("runs: record %s: %w", run.JobName, err)
	}
	return nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Filter struct {
	JobName string
	Since   *time.Time
	Until   *time.Time
	Limit   int
}

// List returns runs newest-first, filtered by job name and/or time
// range.
func (r *Recorder) List(ctx context.Context, f Filter) ([]JobRun, error) {
	q := r.DB.WithContext(ctx).Model(&JobRun{})

	if f.JobName != "" {
		q = q.Where("job_name = ?", f.JobName)
	}
	if f.Since != nil {
		q = q.Where("started_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("started_at < ?", *f.Until)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var out []JobRun
	if err := q.Order("started_at desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("runs: list: %w", err)
	}
	return out, nil
}
