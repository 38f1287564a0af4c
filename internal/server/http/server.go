// Package httpserver serves the public verification route, health and Prometheus metrics.
package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/eventcert/internal/convert"
	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/service"
	"github.com/and161185/eventcert/internal/token"
)

// Options configures the router. Gatherer nil disables /metrics.
type Options struct {
	Gatherer prometheus.Gatherer
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Router mounts GET /api/certificates/verify/{token}, /healthz and /metrics.
func Router(v service.Verifier, log *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(Logging(log))
	r.Use(middleware.Recoverer)

	h := &verifyHandler{v: v, log: log}
	r.Get(token.VerifyPath+"{token}", h.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Logging logs one line per request: method, path, status and duration.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
			)
		})
	}
}

type verifyHandler struct {
	v   service.Verifier
	log *zap.Logger
}

// ServeHTTP answers 200 for valid, 410 for revoked, 404 for unknown tokens and
// 429 with Retry-After for blocked clients.
func (h *verifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	v, retry, err := h.v.VerifyFrom(r.Context(), clientIP(r), tok)
	switch {
	case err == nil && v.Status == model.VerificationRevoked:
		writeJSON(w, http.StatusGone, convert.Verification(v))
	case err == nil:
		writeJSON(w, http.StatusOK, convert.Verification(v))
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "not_found"})
	case errors.Is(err, errs.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate_limited"})
	default:
		h.log.Error("verify certificate", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal_error"})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
