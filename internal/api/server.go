package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/svcctl/internal/api/handler"
	mw "github.com/edvin/svcctl/internal/api/middleware"
	"github.com/edvin/svcctl/internal/history"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	runner         handler.Runner
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	taskQueue      string
}

// NewServer builds the router. pool enables the run ledger and
// temporalClient enables the async endpoints; either may be nil.
func NewServer(logger zerolog.Logger, runner handler.Runner, pool *pgxpool.Pool, temporalClient temporalclient.Client, taskQueue string) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		runner:         runner,
		pool:           pool,
		temporalClient: temporalClient,
		taskQueue:      taskQueue,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	var ledger handler.Ledger
	if s.pool != nil {
		ledger = history.NewStore(s.pool)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", handler.Catalog)

		reconcile := handler.NewReconcile(s.runner, ledger)
		r.Post("/clusters/{cluster}/services/{service}/reconcile", reconcile.Run)

		if s.temporalClient != nil {
			wf := handler.NewWorkflow(s.temporalClient, s.taskQueue)
			r.Post("/clusters/{cluster}/services/{service}/reconcile/async", wf.Start)
			r.Get("/workflows/{workflowID}/await", wf.Await)
		}

		if ledger != nil {
			runs := handler.NewRuns(ledger)
			r.Get("/runs", runs.List)
			r.Get("/runs/{runID}", runs.Get)
		}
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			checks["ledger_db"] = err.Error()
			healthy = false
		} else {
			checks["ledger_db"] = "ok"
		}
	}

	if s.temporalClient != nil {
		if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
			checks["temporal"] = err.Error()
			healthy = false
		} else {
			checks["temporal"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
