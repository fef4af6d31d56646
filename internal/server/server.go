// Package server exposes the speech analyzer over HTTP.
//
// Routes:
//
//	POST /v1/analyze   raw PCM or WAV body; responds with the analysis JSON
//	GET  /healthz      liveness
//	GET  /readyz       readiness (an analyzer is loaded, not draining)
//	GET  <metrics>     Prometheus scrape endpoint, when configured
//
// The analyzer and request limits can be swapped at runtime, which is how
// configuration hot reloads take effect.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/speechscope/internal/health"
	"github.com/MrWong99/speechscope/internal/observe"
	"github.com/MrWong99/speechscope/pkg/speech"
)

// ErrNoAnalyzer is reported by the readiness check before an analyzer is set.
var ErrNoAnalyzer = errors.New("server: no analyzer loaded")

// Limits bounds a single analysis request.
type Limits struct {
	MaxUploadBytes  int64
	AnalysisTimeout time.Duration
}

// Options configures a [Server].
type Options struct {
	Limits Limits

	// MetricsPath mounts MetricsHandler when both are set.
	MetricsPath    string
	MetricsHandler http.Handler

	// Metrics records HTTP and in-flight telemetry. Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Server is the HTTP front end of the analyzer. It is safe for concurrent use.
type Server struct {
	analyzer atomic.Pointer[speech.Analyzer]
	limits   atomic.Pointer[Limits]

	metrics *observe.Metrics
	logger  *slog.Logger
	health  *health.Handler
	handler http.Handler
}

// New builds a Server. a may be nil; the server then reports not-ready and
// answers 503 until [Server.SetAnalyzer] is called.
func New(a *speech.Analyzer, opts Options) *Server {
	s := &Server{
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.analyzer.Store(a)
	s.SetLimits(opts.Limits)

	s.health = health.New(health.Checker{Name: "analyzer", Check: func(context.Context) error {
		if s.analyzer.Load() == nil {
			return ErrNoAnalyzer
		}
		return nil
	}})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	s.health.Register(mux)
	if opts.MetricsPath != "" && opts.MetricsHandler != nil {
		mux.Handle("GET "+opts.MetricsPath, opts.MetricsHandler)
	}
	s.handler = observe.Middleware(s.metrics, s.logger)(mux)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health returns the health handler, e.g. to mark the server as draining.
func (s *Server) Health() *health.Handler {
	return s.health
}

// Analyzer returns the analyzer currently serving requests.
func (s *Server) Analyzer() *speech.Analyzer {
	return s.analyzer.Load()
}

// SetAnalyzer swaps the analyzer. Requests already running finish on the
// analyzer they started with.
func (s *Server) SetAnalyzer(a *speech.Analyzer) {
	s.analyzer.Store(a)
}

// SetLimits swaps the request limits for subsequent requests.
func (s *Server) SetLimits(l Limits) {
	s.limits.Store(&l)
}

type analyzeResult struct {
	res *speech.SpeechAnalysis
	err error
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	a := s.analyzer.Load()
	if a == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not ready", "")
		return
	}
	limits := *s.limits.Load()
	log := observe.Logger(r.Context(), s.logger)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limits.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large",
				"limit is "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read body", err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty body", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), limits.AnalysisTimeout)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "speech.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("audio.bytes", len(data)))

	// The pipeline does not observe ctx, so it runs on its own goroutine and
	// the request gives up on it at the deadline.
	done := make(chan analyzeResult, 1)
	s.metrics.InFlight.Add(ctx, 1)
	go func() {
		defer s.metrics.InFlight.Add(context.WithoutCancel(ctx), -1)
		res, err := a.AnalyzeAudio(ctx, data)
		done <- analyzeResult{res: res, err: err}
	}()

	var out analyzeResult
	select {
	case out = <-done:
	case <-ctx.Done():
		span.SetStatus(codes.Error, "analysis timed out")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("server: analysis timed out", "timeout", limits.AnalysisTimeout, "bytes", len(data))
			writeError(w, http.StatusGatewayTimeout, "analysis timed out", "")
		}
		return
	}

	if out.err != nil {
		if errors.Is(out.err, speech.ErrNoAnalysis) {
			span.SetAttributes(attribute.Bool("speech.analysed", false))
			writeError(w, http.StatusUnprocessableEntity, "no analysis", out.err.Error())
			return
		}
		span.SetStatus(codes.Error, out.err.Error())
		log.Error("server: analysis failed", "err", out.err)
		writeError(w, http.StatusInternalServerError, "analysis failed", "")
		return
	}

	s.metrics.RecordAudio(ctx, out.res.AudioDuration)
	span.SetAttributes(
		attribute.Bool("speech.analysed", true),
		attribute.Float64("speech.overall_quality", out.res.OverallQuality),
		attribute.Int("speech.degraded_stages", len(out.res.Degraded())),
	)

	body := a.Serialize(out.res)
	if includeStages(r) {
		body["stages"] = speech.StagesToMap(out.res.Stages)
	}
	writeJSON(w, http.StatusOK, body)
}

func includeStages(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("stages"))
	return err == nil && v
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorBody{Error: msg, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
