package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"refreshd/internal/runs"
	"refreshd/internal/sqljob"
)

// State of one registered job. Disabled is terminal for the process
// lifetime: only a restart with a different active set revives a job.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
)

var (
	ErrUnknownJob     = errors.New("scheduler: unknown job")
	ErrJobDisabled    = errors.New("scheduler: job disabled")
	ErrAlreadyRunning = errors.New("scheduler: job already running")
)

// Outcome summarizes the most recent run of a job for the status
// surface. Full history lives in the run recorder.
type Outcome struct {
	RunID      string    `json:"run_id"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS float64   `json:"duration_ms"`
}

type entry struct {
	def      sqljob.Definition
	interval time.Duration

	mu       sync.Mutex
	state    State
	lastTick time.Time // start of last accepted tick, or completion time
	last     *Outcome
}

// Scheduler drives recurring jobs on independent intervals. One
// coordinator loop evaluates due ticks; executions dispatch to their
// own goroutines so a slow job never blocks another job's tick.
//
// Per job name, at most one execution is ever in flight: a tick that
// fires while the previous run is still going is skipped, not queued.
// The next tick is measured from the completion of the current run, so
// overruns never cause catch-up bursts.
type Scheduler struct {
	conn       runs.Conn
	sink       runs.Sink
	log        zerolog.Logger
	resolution time.Duration

	mu   sync.Mutex
	jobs map[string]*entry

	wg sync.WaitGroup // in-flight executions
}

func New(conn runs.Conn, sink runs.Sink, log zerolog.Logger, resolution time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = time.Second
	}
	return &Scheduler{
		conn:       conn,
		sink:       sink,
		log:        log,
		resolution: resolution,
		jobs:       map[string]*entry{},
	}
}

// Register adds a job to the registry. Disabled jobs stay visible in
// the snapshot but never tick. The first tick fires one interval after
// Run starts evaluating.
func (s *Scheduler) Register(def sqljob.Definition, interval time.Duration, enabled bool) error {
	if def.Name == "" {
		return errors.New("scheduler: job without a name")
	}
	if !def.Recurring() {
		return fmt.Errorf("scheduler: job %s has no refresh statement", def.Name)
	}
	if enabled && interval <= 0 {
		return fmt.Errorf("scheduler: job %s has no interval", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[def.Name]; exists {
		return fmt.Errorf("scheduler: duplicate job name %s", def.Name)
	}

	state := StateIdle
	if !enabled {
		state = StateDisabled
	}
	s.jobs[def.Name] = &entry{
		def:      def,
		interval: interval,
		state:    state,
		lastTick: time.Now(),
	}
	return nil
}

// Run blocks until ctx is cancelled, then waits for in-flight
// executions to finish. Mid-flight statements are never interrupted:
// a half-done schema mutation is worse than a late shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().
		Int("jobs", len(s.snapshotEntries())).
		Dur("resolution", s.resolution).
		Msg("scheduler started")

	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping, waiting for in-flight jobs")
			s.wg.Wait()
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.dispatchDue(time.Now())
		}
	}
}

func (s *Scheduler) dispatchDue(now time.Time) {
	for _, e := range s.snapshotEntries() {
		e.mu.Lock()
		switch {
		case e.state == StateDisabled:
			e.mu.Unlock()
		case now.Sub(e.lastTick) < e.interval:
			e.mu.Unlock()
		case e.state == StateRunning:
			// Coalesce: consume the tick instead of queueing it.
			e.lastTick = now
			e.mu.Unlock()
			s.log.Debug().Str("job", e.def.Name).Msg("tick skipped, previous run still in flight")
		default:
			e.state = StateRunning
			e.lastTick = now
			e.mu.Unlock()
			s.wg.Add(1)
			go s.execute(e)
		}
	}
}

// Trigger starts an out-of-band run of one job, subject to the same
// mutual exclusion as scheduled ticks.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	e.mu.Lock()
	switch e.state {
	case StateDisabled:
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobDisabled, name)
	case StateRunning:
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	e.state = StateRunning
	e.lastTick = time.Now()
	e.mu.Unlock()

	s.wg.Add(1)
	go s.execute(e)
	return nil
}

func (s *Scheduler) execute(e *entry) {
	defer s.wg.Done()

	// Deliberately not tied to the run context: shutdown waits for the
	// statement instead of cancelling it.
	run := runs.Execute(context.Background(), s.conn, e.def)
	_ = s.sink.Record(context.Background(), run)

	outcome := &Outcome{
		RunID:      run.ID,
		Success:    run.Success,
		FinishedAt: run.FinishedAt,
		DurationMS: run.DurationMS,
	}
	if run.Message != nil {
		outcome.Message = *run.Message
	}

	e.mu.Lock()
	e.state = StateIdle
	e.lastTick = run.FinishedAt
	e.last = outcome
	e.mu.Unlock()

	evt := s.log.Info()
	if !run.Success {
		evt = s.log.Warn()
	}
	evt.Str("job", e.def.Name).
		Bool("success", run.Success).
		Float64("duration_ms", run.DurationMS).
		Msg("job finished")
}

func (s *Scheduler) snapshotEntries() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].def.Name < out[j].def.Name })
	return out
}
