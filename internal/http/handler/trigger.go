package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"refreshd/internal/scheduler"
)

type TriggerHandler struct {
	Sched *scheduler.Scheduler
}

// Run starts an out-of-band execution of one job. The run is
// dispatched, not awaited; its outcome lands in the run history like
// any scheduled tick.
func (h *TriggerHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.Sched.Trigger(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case errors.Is(err, scheduler.ErrJobDisabled):
		http.Error(w, "job disabled", http.StatusForbidden)
		return
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		http.Error(w, "already running", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"job":    name,
		"status": "started",
	})
}
