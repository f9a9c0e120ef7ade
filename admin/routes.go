package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/auditsource/telemetry"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// NewRouter builds the HTTP routes:
//
//	GET /health             driver health, 503 after a failed cycle
//	GET /metrics            Prometheus metrics, when enabled
//	GET /admin/status       source, sink and health (auth required)
//	GET /admin/checkpoint   committed cursor value (auth required)
//	POST /admin/poll        wake the driver to poll now (auth required)
func NewRouter(handlers *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handlers.handleHealth)

	if metrics := telemetry.GetMetricsHandler(); metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	if handlers.config.Admin.Enabled {
		r.Route("/admin", func(r chi.Router) {
			r.Use(AuthMiddleware(handlers.config.Admin.Secret))
			r.Get("/status", handlers.handleStatus)
			r.Get("/checkpoint", handlers.handleCheckpoint)
			r.Post("/poll", handlers.handlePoll)
		})
		log.Info().Msg("Admin endpoints enabled at /admin/*")
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "not found")
	})

	return r
}

// Serve runs the HTTP server on addr until ctx is done
func Serve(ctx context.Context, addr string, handlers *Handlers) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
