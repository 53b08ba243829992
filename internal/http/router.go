package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"refreshd/internal/auth"
	"refreshd/internal/config"
	"refreshd/internal/http/handler"
	mw "refreshd/internal/http/middleware"
	"refreshd/internal/runs"
	"refreshd/internal/scheduler"
)

type Deps struct {
	DB        *gorm.DB
	Scheduler *scheduler.Scheduler
	Recorder  *runs.Recorder
	JWT       *auth.JWT // nil when API_AUTH_SECRET is unset
	Registry  *prometheus.Registry
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	sh := &handler.StatusHandler{DB: d.DB, Sched: d.Scheduler, Cfg: cfg}
	r.Get("/health", sh.Health)
	r.Get("/status", sh.Status)
	r.Get("/jobs", sh.Jobs)
	r.Get("/jobs/{name}", sh.Job)

	rh := &handler.RunsHandler{Recorder: d.Recorder}
	r.Get("/runs", rh.List)

	th := &handler.TriggerHandler{Sched: d.Scheduler}
	r.With(auth.RequireAuth(d.JWT)).Post("/jobs/{name}/run", th.Run)

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
