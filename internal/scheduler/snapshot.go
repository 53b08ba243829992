package scheduler

import "time"

// JobStatus is one job's view in the introspection surface.
type JobStatus struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	ObjectName string        `json:"object_name"`
	Interval   time.Duration `json:"-"`
	IntervalS  float64       `json:"interval_seconds"`
	State      State         `json:"state"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
	LastRun    *Outcome      `json:"last_run,omitempty"`
}

// Snapshot returns the registry sorted by job name. Read-only; it
// never mutates scheduler state.
func (s *Scheduler) Snapshot() []JobStatus {
	entries := s.snapshotEntries()
	out := make([]JobStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := JobStatus{
			Name:       e.def.Name,
			Kind:       string(e.def.Kind),
			ObjectName: e.def.ObjectName,
			Interval:   e.interval,
			IntervalS:  e.interval.Seconds(),
			State:      e.state,
			LastRun:    e.last,
		}
		if e.state != StateDisabled {
			next := e.lastTick.Add(e.interval)
			st.NextRun = &next
		}
		e.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Status returns one job's view, or false when the name is unknown.
func (s *Scheduler) Status(name string) (JobStatus, bool) {
	for _, st := range s.Snapshot() {
		if st.Name == name {
			return st, true
		}
	}
	return JobStatus{}, false
}
