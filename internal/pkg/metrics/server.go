package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthFunc reports whether the process can serve traffic.
type HealthFunc func(ctx context.Context) error

// Mount registers additional routes on the ops router.
type Mount func(r chi.Router)

const healthTimeout = 500 * time.Millisecond

// Handler returns the router serving /metrics, /healthz and any mounted
// routes.
func (m *Metrics) Handler(healthFn HealthFunc, mounts ...Mount) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	for _, mount := range mounts {
		mount(r)
	}

	return r
}

// StartServer serves Handler on addr in a background goroutine.
// The caller shuts the returned server down.
func (m *Metrics) StartServer(addr string, healthFn HealthFunc, mounts ...Mount) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(healthFn, mounts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()

	return srv
}
