// Package server exposes the Analysis-Ready Table and its page summaries
// over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"loan-eda/cache"
	"loan-eda/catalog"
	"loan-eda/models"
	"loan-eda/services"
	"loan-eda/storage"
	"loan-eda/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Options wires the server's collaborators. Cache and Catalog may be nil.
type Options struct {
	Store    *TableStore
	Insights *services.InsightService
	Catalog  *catalog.Catalog
	Cache    *cache.RedisCache
	Metrics  *Metrics
	Logger   *utils.Logger
	Seed     int64
}

// Server handles the dashboard API.
type Server struct {
	store    *TableStore
	insights *services.InsightService
	catalog  *catalog.Catalog
	cache    *cache.RedisCache
	metrics  *Metrics
	logger   *utils.Logger
	seed     int64
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// New creates a Server.
func New(opts Options) *Server {
	return &Server{
		store:    opts.Store,
		insights: opts.Insights,
		catalog:  opts.Catalog,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		seed:     opts.Seed,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/overview", servePage(s, "overview", s.insights.Overview))
		r.Get("/univariate", servePage(s, "univariate", s.insights.Univariate))
		r.Get("/performance", servePage(s, "performance", s.insights.Performance))
		r.Get("/risk", servePage(s, "risk", s.insights.Risk))
		r.Get("/multivariate", servePage(s, "multivariate", s.insights.Multivariate))
		r.Get("/borrowers/{index}", s.handleBorrower)
		r.Get("/dictionary", s.handleDictionary)
		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/export.xlsx", s.handleExportXLSX)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(s.logger.Writer(), "[http] ", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("[server] Shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("[http] %s %s %d %v", r.Method, r.URL.RequestURI(), ww.Status(), time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	t := s.store.Current()
	if t == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]any{"status": "building"})
		return
	}
	render.JSON(w, r, map[string]any{
		"status":   "ok",
		"run_id":   t.RunID(),
		"rows":     t.Len(),
		"built_at": t.BuiltAt(),
	})
}

// servePage answers one page summary, consulting the cache first.
func servePage[T any](s *Server, page string, compute func(*services.View) *T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, filter, ok := s.prepare(w, r)
		if !ok {
			return
		}

		key := cache.Key(t.RunID(), page, filter.Key())
		var cached T
		hit, err := s.cache.Get(r.Context(), key, &cached)
		if err != nil {
			s.logger.Warn("[server] Cache read failed: %v", err)
		}
		if s.metrics != nil && s.cache != nil {
			s.metrics.observeCache(hit)
		}
		if hit {
			render.JSON(w, r, &cached)
			return
		}

		v, ok := s.view(w, r, t, filter)
		if !ok {
			return
		}
		out := compute(v)
		if err := s.cache.Set(r.Context(), key, out); err != nil {
			s.logger.Warn("[server] Cache write failed: %v", err)
		}
		render.JSON(w, r, out)
	}
}

func (s *Server) handleBorrower(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, errorResponse{Error: "index must be an integer", Field: "index"})
		return
	}

	t, filter, ok := s.prepare(w, r)
	if !ok {
		return
	}
	v, ok := s.view(w, r, t, filter)
	if !ok {
		return
	}

	p, err := s.insights.Borrower(v, index)
	if errors.Is(err, services.ErrRowOutOfRange) {
		s.fail(w, r, http.StatusNotFound, errorResponse{Error: err.Error(), Field: "index"})
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, p)
}

func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		render.JSON(w, r, map[string]any{"dataset": "", "columns": []catalog.Entry{}})
		return
	}
	render.JSON(w, r, map[string]any{
		"dataset": s.catalog.Dataset(),
		"columns": s.catalog.Entries(),
	})
}

// handleExportCSV streams the sampled rows of the filtered view.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	t, filter, ok := s.prepare(w, r)
	if !ok {
		return
	}
	v, ok := s.view(w, r, t, filter)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="loans_%s.csv"`, t.RunID()))
	if err := storage.WriteCSV(r.Context(), w, t, v.Sampled()); err != nil {
		s.logger.Error("[server] CSV export failed: %v", err)
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	t, filter, ok := s.prepare(w, r)
	if !ok {
		return
	}
	v, ok := s.view(w, r, t, filter)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := storage.WriteXLSX(r.Context(), &buf, t, v.Sampled(), s.catalog); err != nil {
		s.logger.Error("[server] XLSX export failed: %v", err)
		s.fail(w, r, http.StatusInternalServerError, errorResponse{Error: "export failed"})
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="loans_%s.xlsx"`, t.RunID()))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("[server] XLSX export interrupted: %v", err)
	}
}

// prepare resolves the served table and the validated, normalized filter of
// the request, answering the error itself when either is unavailable.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request) (*models.Table, services.Filter, bool) {
	t := s.store.Current()
	if t == nil {
		s.fail(w, r, http.StatusServiceUnavailable, errorResponse{Error: ErrNoTable.Error()})
		return nil, services.Filter{}, false
	}

	filter, err := parseFilter(r)
	if err == nil {
		filter = filter.Normalize()
		err = filter.Validate()
	}
	if err != nil {
		s.failFilter(w, r, err)
		return nil, services.Filter{}, false
	}
	return t, filter, true
}

func (s *Server) view(w http.ResponseWriter, r *http.Request, t *models.Table, filter services.Filter) (*services.View, bool) {
	v, err := services.NewView(t, filter, s.seed)
	if err != nil {
		s.failFilter(w, r, err)
		return nil, false
	}
	return v, true
}

func (s *Server) failFilter(w http.ResponseWriter, r *http.Request, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		s.fail(w, r, http.StatusBadRequest, errorResponse{Error: ve.Error(), Field: ve.Field})
		return
	}
	s.fail(w, r, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, body errorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// parseFilter reads grade, term, purpose and sample. List parameters may be
// repeated or comma-separated.
func parseFilter(r *http.Request) (services.Filter, error) {
	q := r.URL.Query()
	f := services.Filter{
		Grades:   splitParam(q["grade"]),
		Purposes: splitParam(q["purpose"]),
	}

	for _, raw := range splitParam(q["term"]) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, &services.ValidationError{Field: "terms", Message: fmt.Sprintf("%q is not a number of months", raw)}
		}
		f.Terms = append(f.Terms, n)
	}

	if raw := strings.TrimSpace(q.Get("sample")); raw != "" {
		frac, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, &services.ValidationError{Field: "sample", Message: fmt.Sprintf("%q is not a fraction", raw)}
		}
		f.Sample = frac
	}
	return f, nil
}

func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
