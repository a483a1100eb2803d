// Package dashboard serves the fraud analytics page, its charts and the
// derived tables over HTTP.
package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aqilqeka/Aqil-project/db"
	"github.com/aqilqeka/Aqil-project/loader"
	"github.com/aqilqeka/Aqil-project/query"
	"github.com/aqilqeka/Aqil-project/storage"
)

// Row-count selector bounds.
const (
	MinRows     = 1000
	RowStep     = 1000
	DefaultRows = 100000
)

var (
	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fraudboard_http_request_duration_seconds",
		Help: "HTTP request latency by route and status",
	}, []string{"route", "code"})
	renderCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudboard_chart_cache_total",
		Help: "Chart render cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(requestLatency, renderCacheHits)
}

// ClampRows maps a requested row count onto the selector's range: at least
// MinRows, at most total, in RowStep increments below total. Tables smaller
// than MinRows are used whole.
func ClampRows(n, total int) int {
	if total <= 0 {
		return 0
	}
	if total <= MinRows || n >= total {
		return total
	}
	if n < MinRows {
		return MinRows
	}
	return n - n%RowStep
}

// Options configures a Server.
type Options struct {
	Addr            string
	DefaultRows     int
	RenderCacheSize int
}

// Server is the dashboard HTTP server.
type Server struct {
	http.Server
	session     *loader.Session
	pipeline    *query.Pipeline
	logger      *zap.Logger
	templates   *template.Template
	charts      *renderCache
	defaultRows int
	mem         memory.Allocator
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options, session *loader.Session, pipeline *query.Pipeline, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultRows <= 0 {
		opts.DefaultRows = DefaultRows
	}
	if opts.RenderCacheSize <= 0 {
		opts.RenderCacheSize = 256
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		session:     session,
		pipeline:    pipeline,
		logger:      logger,
		templates:   tmpl,
		charts:      newRenderCache(opts.RenderCacheSize),
		defaultRows: opts.DefaultRows,
		mem:         memory.NewGoAllocator(),
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /charts/{chart}", s.handleChart)
	mux.HandleFunc("GET /api/{aggregate}", s.handleAPI)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.Handler = s.withLogging(mux)
	return s, nil
}

// withLogging logs each request and records its latency.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		requestLatency.WithLabelValues(route, strconv.Itoa(rw.statusCode)).Observe(duration.Seconds())
		s.logger.Info("request completed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("url", r.URL.RequestURI()),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", duration))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// table returns the loaded table, or writes 503 while loading and 500 when
// the load failed.
func (s *Server) table(w http.ResponseWriter) (*db.Table, bool) {
	table, err := s.session.Table()
	switch {
	case errors.Is(err, loader.ErrNotInitialized):
		w.Header().Set("Retry-After", "5")
		http.Error(w, "dataset is still loading", http.StatusServiceUnavailable)
		return nil, false
	case err != nil:
		http.Error(w, "dataset failed to load: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return table, true
}

// rows reads the rows query parameter, defaulting to the configured row
// count, and clamps it to the table.
func (s *Server) rows(r *http.Request, total int) (int, error) {
	n := s.defaultRows
	if v := r.URL.Query().Get("rows"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.New("rows must be an integer")
		}
		n = parsed
	}
	return ClampRows(n, total), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "ready"
	if _, err := s.session.Table(); errors.Is(err, loader.ErrNotInitialized) {
		state = "loading"
	} else if err != nil {
		state = "failed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": state})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("chart"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	c := Chart(name)
	kind, err := aggregateFor(c)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	table, ok := s.table(w)
	if !ok {
		return
	}
	rows, err := s.rows(r, table.Len())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := cacheKey(c, rows)
	png, hit := s.charts.get(key)
	if hit {
		renderCacheHits.WithLabelValues("hit").Inc()
	} else {
		renderCacheHits.WithLabelValues("miss").Inc()
		res, err := s.pipeline.Run(table, rows, kind)
		if err != nil {
			s.logger.Error("render pass failed", zap.String("chart", name), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		png, err = renderChart(c, res)
		if errors.Is(err, errEmptyChart) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			s.logger.Error("chart render failed", zap.String("chart", name), zap.Error(err))
			http.Error(w, "chart render failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		s.charts.add(key, png)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// apiResponse is the JSON envelope of one derived table.
type apiResponse struct {
	PassID    string          `json:"pass_id"`
	Aggregate query.Aggregate `json:"aggregate"`
	Rows      int             `json:"rows"`
	Data      any             `json:"data"`
}

// correlationJSON carries NaN coefficients as nulls.
type correlationJSON struct {
	Fields []string     `json:"fields"`
	Values [][]*float64 `json:"values"`
}

func toCorrelationJSON(m *query.CorrelationMatrix) correlationJSON {
	out := correlationJSON{Fields: m.Fields, Values: make([][]*float64, len(m.Values))}
	for i, row := range m.Values {
		out.Values[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				out.Values[i][j] = &v
			}
		}
	}
	return out
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	kind, err := query.ParseAggregate(r.PathValue("aggregate"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	table, ok := s.table(w)
	if !ok {
		return
	}
	rows, err := s.rows(r, table.Len())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.pipeline.Run(table, rows, kind)
	if err != nil {
		s.logger.Error("render pass failed", zap.String("aggregate", string(kind)), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "arrow" {
		rec, err := query.EncodeRecord(s.mem, kind, res)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rec.Release()
		var buf bytes.Buffer
		if err := storage.WriteStream(&buf, rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
		_, _ = w.Write(buf.Bytes())
		return
	}

	data := res.Value(kind)
	if kind == query.AggCorrelation {
		data = toCorrelationJSON(res.Correlation)
	}
	writeJSON(w, http.StatusOK, apiResponse{
		PassID:    res.PassID,
		Aggregate: kind,
		Rows:      res.Rows,
		Data:      data,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
