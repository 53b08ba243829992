package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"refreshd/internal/config"
	"refreshd/internal/scheduler"
)

type StatusHandler struct {
	DB    *gorm.DB
	Sched *scheduler.Scheduler
	Cfg   config.Config
}

type statusDTO struct {
	Pool      poolDTO               `json:"pool"`
	Intervals intervalsDTO          `json:"intervals"`
	Jobs      []scheduler.JobStatus `json:"jobs"`
}

type poolDTO struct {
	MinSize int `json:"min_size"`
	MaxSize int `json:"max_size"`
}

type intervalsDTO struct {
	RefreshSeconds   float64 `json:"refresh_seconds"`
	RetentionSeconds float64 `json:"retention_seconds"`
	PartitionSeconds float64 `json:"partition_seconds"`
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	out := statusDTO{
		Pool: poolDTO{MinSize: h.Cfg.PoolMinSize, MaxSize: h.Cfg.PoolMaxSize},
		Intervals: intervalsDTO{
			RefreshSeconds:   h.Cfg.RefreshInterval.Seconds(),
			RetentionSeconds: h.Cfg.RetentionInterval.Seconds(),
			PartitionSeconds: h.Cfg.PartitionInterval.Seconds(),
		},
		Jobs: h.Sched.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *StatusHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Sched.Snapshot())
}

func (h *StatusHandler) Job(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	st, ok := h.Sched.Status(name)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}
