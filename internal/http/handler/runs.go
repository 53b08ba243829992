package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refreshd/internal/runs"
)

type RunsHandler struct {
	Recorder *runs.Recorder
}

type runDTO struct {
	ID           string    `json:"id"`
	JobName      string    `json:"job_name"`
	JobKind      string    `json:"job_kind"`
	ObjectName   string    `json:"object_name"`
	SourceFile   string    `json:"source_file"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMS   float64   `json:"duration_ms"`
	RowsAffected *int64    `json:"rows_affected"`
	Success      bool      `json:"success"`
	Message      *string   `json:"message"`
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	f := runs.Filter{
		JobName: strings.TrimSpace(r.URL.Query().Get("job")),
	}

	if v := strings.TrimSpace(r.URL.Query().Get("since")); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		f.Since = &ts
	}
	if v := strings.TrimSpace(r.URL.Query().Get("until")); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid until", http.StatusBadRequest)
			return
		}
		f.Until = &ts
	}
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	rows, err := h.Recorder.List(r.Context(), f)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]runDTO, 0, len(rows))
	for _, run := range rows {
		out = append(out, runDTO{
			ID:           run.ID,
			JobName:      run.JobName,
			JobKind:      run.JobKind,
			ObjectName:   run.ObjectName,
			SourceFile:   run.SourceFile,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			DurationMS:   run.DurationMS,
			RowsAffected: run.RowsAffected,
			Success:      run.Success,
			Message:      run.Message,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
