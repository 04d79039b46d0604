package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hometownmap/parcelpipe/internal/core/config"
	"github.com/hometownmap/parcelpipe/internal/logger"
	"github.com/hometownmap/parcelpipe/internal/metrics"
)

// Run sets up http and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.ServeCfg, log zerolog.Logger, store *Store, prom *metrics.Provider) error {
	r := NewRouter(log, store, prom)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ErrorLog:          slog.NewLogLogger(logger.NewSlog(&log).Handler(), slog.LevelError),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// NewRouter wires middleware and routes. Split out from Run so tests
// can drive the handler directly.
func NewRouter(log zerolog.Logger, store *Store, prom *metrics.Provider) *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer(&log))
	r.Use(logging(&log))
	r.Use(cors())

	r.Get("/healthz", liveness())
	r.Get("/readyz", readiness(store))
	r.Get("/metrics", prom.Handler().ServeHTTP)
	r.Get("/datasets/{city}/{name}", handleDataset(log, store, prom))

	return r
}

func liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func readiness(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string `json:"status"`
		}
		out := resp{Status: "ready"}
		w.Header().Set("Content-Type", "application/json")
		if !store.Ready() {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func handleDataset(log zerolog.Logger, store *Store, prom *metrics.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		city := chi.URLParam(r, "city")
		name := chi.URLParam(r, "name")

		ctx := logger.WithCity(r.Context(), city)
		ctx = logger.WithDataset(ctx, name)
		reqLog := logger.FromContext(ctx, &log)

		d, outcome, err := store.Get(city, name)
		prom.CacheEvents.WithLabelValues(string(outcome)).Inc()
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrNotFound) {
				status = http.StatusNotFound
			} else {
				reqLog.Error().Err(err).Msg("dataset load failed")
			}
			prom.DatasetsServed.WithLabelValues(city, name, statusLabel(status)).Inc()
			http.Error(w, http.StatusText(status), status)
			return
		}

		if match := r.Header.Get("If-None-Match"); match != "" && match == d.ETag {
			prom.DatasetsServed.WithLabelValues(city, name, "304").Inc()
			w.Header().Set("ETag", d.ETag)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("ETag", d.ETag)
		w.Header().Set("Last-Modified", d.ModTime.UTC().Format(http.TimeFormat))
		_, _ = w.Write(d.Body)

		prom.DatasetsServed.WithLabelValues(city, name, "200").Inc()
		prom.ServeDuration.WithLabelValues(city).Observe(time.Since(start).Seconds())
		reqLog.Debug().Str("outcome", string(outcome)).Int("bytes", len(d.Body)).Msg("dataset served")
	}
}

func statusLabel(code int) string {
	switch code {
	case http.StatusNotFound:
		return "404"
	default:
		return "500"
	}
}
