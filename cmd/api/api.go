package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/engine"
	"github.com/alanchaparro/bi-sub000/internal/cartera/persist"
	"github.com/alanchaparro/bi-sub000/internal/cartera/pipeline"
	"github.com/alanchaparro/bi-sub000/internal/config"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

type application struct {
	config       config.Config
	store        *store.Storage
	datasets     *dataset.Store
	engine       *engine.Engine
	orchestrator *pipeline.Orchestrator
	persister    *persist.Persister
	registry     *prometheus.Registry
	appLogger    *logger.Logger
}

// maxUploadBytes bounds a single uploaded feed.
const maxUploadBytes = 256 << 20

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", app.handleListDatasets)
			r.Post("/sync", app.handleSyncDatasets)
			r.Post("/save", app.handleSaveDatasets)
			r.Post("/restore", app.handleRestoreDatasets)
			r.Post("/{kind}", app.handleUploadDataset)
		})
		r.Route("/views", func(r chi.Router) {
			r.Get("/", app.handleListViews)
			r.Get("/{view}", app.handleGetView)
		})
		r.Route("/ingestion", func(r chi.Router) {
			r.Get("/history", app.handleGetIngestionHistory)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {

	srv := &http.Server{
		Addr:         app.config.Addr,
		Handler:      mux,
		WriteTimeout: time.Second * 120,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	app.appLogger.Info("API", "Server started on %s", app.config.Addr)
	return srv.ListenAndServe()
}
