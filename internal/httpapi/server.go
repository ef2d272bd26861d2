package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/alertack/internal/httpapi/middleware"
	"github.com/hamed0406/alertack/internal/reconcile"
	"github.com/hamed0406/alertack/internal/repo"
)

// StateSource reports where the reconciliation loop currently is.
type StateSource interface {
	State() reconcile.State
}

type Server struct {
	Logger *zap.Logger
	Store  repo.StatsReader
	Runner StateSource // optional

	now func() time.Time
}

func NewServer(l *zap.Logger, store repo.StatsReader, runner StateSource) *Server {
	return &Server{Logger: l, Store: store, Runner: runner, now: func() time.Time { return time.Now().UTC() }}
}

// RouterOptions gathers the HTTP-facing knobs from the API config.
type RouterOptions struct {
	Keys           apimw.Keys
	AllowedOrigins []string // empty allows any origin
	PublicRPM      int
	PublicBurst    int
	TrustedProxies apimw.Proxies // peers whose X-Forwarded-For is believed
}

func (s *Server) Router(opt RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	if len(opt.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opt.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(opt.PublicRPM, opt.PublicBurst, opt.TrustedProxies))
		r.Use(apimw.RequireAny(opt.Keys))

		r.Get("/api/stats", s.handleStats)
		r.Get("/api/charts/hourly", s.handleHourly)
		r.Get("/api/history", s.handleHistory)
		r.Get("/api/history/export", s.handleHistoryExport)
		r.Get("/api/acknowledgments/recent", s.handleRecentAcks)
		r.Get("/api/runs/recent", s.handleRecentRuns)
	})

	r.With(apimw.RequireAdmin(opt.Keys)).Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/healthz" {
			return
		}
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// serverError logs err and answers with a generic 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.Logger.Error("api_query_failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server error")
}
