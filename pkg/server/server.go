// Package server exposes the gifted client over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/codeGROOVE-dev/gifted/pkg/gifted"
	"github.com/codeGROOVE-dev/gifted/pkg/recommend"
	"github.com/codeGROOVE-dev/gifted/pkg/search"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20

	defaultRequestTimeout = 45 * time.Second
	shutdownTimeout       = 15 * time.Second
)

// Server serves the JSON API, health and metrics endpoints.
type Server struct {
	client   *gifted.Client
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics
	mux      *http.ServeMux
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestTimeout bounds the work done for a single API request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a Server backed by client.
func New(client *gifted.Client, opts ...Option) *Server {
	s := &Server{
		client:   client,
		logger:   slog.Default(),
		registry: prometheus.NewRegistry(),
		mux:      http.NewServeMux(),
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registry)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /healthz", s.handleHealth)
	s.handle("GET /api/search-identities", s.handleSearchIdentities)
	s.handle("GET /api/enrich", s.handleEnrich)
	s.handle("POST /api/recs", s.handleRecs)
	s.handle("GET /api/amazon-redirect", s.handleAmazonRedirect)
	s.handle("POST /api/find-needs", s.handleFindNeeds)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// handle registers h under pattern with request metrics labelled by the pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	route := pattern[strings.Index(pattern, " ")+1:]
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.requests.WithLabelValues(route, fmt.Sprint(rec.status)).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}))
}

// Handler returns the root handler with request ids, logging and tracing applied.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.middleware(s.mux), "gifted")
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type ctxKey struct{}

// RequestID returns the request id attached by the server middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string) //nolint:errcheck // missing id is ""
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		s.logger.InfoContext(ctx, "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start))
	})
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchIdentities(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if name == "" {
		respondJSON(w, http.StatusOK, gifted.Resolution{Candidates: []gifted.Candidate{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.client.Resolve(ctx, name, location)
	if err != nil {
		s.logger.WarnContext(ctx, "resolve failed", "request_id", RequestID(ctx), "error", err)
		respondError(w, http.StatusInternalServerError, "resolve failed")
		return
	}

	outcome := "none"
	if res.Auto != nil {
		outcome = "auto"
	}
	s.metrics.resolutions.WithLabelValues(outcome).Inc()
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	prof, err := s.client.Enrich(ctx, target)
	if err != nil {
		if errors.Is(err, gifted.ErrInvalidURL) {
			respondError(w, http.StatusBadRequest, "invalid url")
			return
		}
		s.logger.WarnContext(ctx, "enrich failed", "request_id", RequestID(ctx), "url", target, "error", err)
		respondError(w, http.StatusBadGateway, "fetch failed")
		return
	}
	respondJSON(w, http.StatusOK, prof)
}

// RecsRequest is the body of POST /api/recs.
type RecsRequest struct {
	Profile struct {
		Signals signal.Vector `json:"signals"`
	} `json:"profile"`
	Prefs    *recommend.Prefs `json:"prefs,omitempty"`
	Subject  string           `json:"subject,omitempty"`
	Owns     []string         `json:"owns,omitempty"`
	Nogos    []string         `json:"nogos,omitempty"`
	MinPrice float64          `json:"minPrice,omitempty"`
	MaxPrice float64          `json:"maxPrice,omitempty"`
}

func (s *Server) handleRecs(w http.ResponseWriter, r *http.Request) {
	var body RecsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := s.client.Recommend(gifted.Request{
		Signals:  body.Profile.Signals,
		Prefs:    body.Prefs,
		Subject:  body.Subject,
		Owns:     body.Owns,
		Nogos:    body.Nogos,
		MinPrice: body.MinPrice,
		MaxPrice: body.MaxPrice,
	})
	s.metrics.ideas.Observe(float64(len(res.Ideas)))
	respondJSON(w, http.StatusOK, res.Ideas)
}

func (s *Server) handleAmazonRedirect(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	dest, err := s.client.AffiliateURL(target)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad url")
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// FindNeedsRequest is the body of POST /api/find-needs.
type FindNeedsRequest struct {
	FullName string `json:"fullName"`
	Location string `json:"location"`
}

func (s *Server) handleFindNeeds(w http.ResponseWriter, r *http.Request) {
	var body FindNeedsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.FullName) == "" {
		respondError(w, http.StatusBadRequest, "fullName is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	hits, err := s.client.FindRegistries(ctx, body.FullName, body.Location)
	if err != nil {
		s.logger.WarnContext(ctx, "registry search failed", "request_id", RequestID(ctx), "error", err)
		respondError(w, http.StatusBadGateway, "search failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]search.Hit{"hits": hits})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
