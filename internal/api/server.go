// Package api exposes valuations and exchange quotes over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrixise/wallet-valuator/internal/exchange"
	"github.com/matrixise/wallet-valuator/internal/service"
)

// Valuer values the configured holdings
type Valuer interface {
	Revalue(ctx context.Context) (service.Report, error)
}

// Quoter estimates an exchange
type Quoter interface {
	Quote(ctx context.Context, from, to, amount string) (exchange.Estimate, error)
}

// NewRouter builds the HTTP routes. health may be nil.
func NewRouter(valuer Valuer, quoter Quoter, health http.HandlerFunc, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{valuer: valuer, quoter: quoter, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	if health != nil {
		r.Get("/health", health)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/valuations", h.handleValuations)
		r.Get("/quote", h.handleQuote)
	})
	return r
}

// requestLogger logs one line per request with slog
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
