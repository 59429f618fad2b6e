package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pattaya-pulse/video-pipeline/internal/moderation"
	"github.com/pattaya-pulse/video-pipeline/internal/scheduler"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// Server exposes the widget read API, the moderation write API, and the
// scheduler status snapshot
type Server struct {
	mod   *moderation.Service
	sched *scheduler.Scheduler
	log   *logger.Logger
}

// New creates the API server
func New(mod *moderation.Service, sched *scheduler.Scheduler, log *logger.Logger) *Server {
	return &Server{
		mod:   mod,
		sched: sched,
		log:   log.WithComponent("api"),
	}
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Get("/", s.listActiveVideos)
			r.Get("/stats", s.videoStats)
			r.Put("/{id}/moderation", s.moderateVideo)
			r.Post("/moderation/bulk", s.moderateBulk)
		})
		r.Get("/scheduler/status", s.schedulerStatus)
	})

	return r
}

// requestID attaches a request ID header to every response
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, req)
	})
}

// requestLogger logs each request at debug level
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.log.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Msg("Request handled")
	})
}
