// Package httpapi implements the REST and WebSocket boundary: every handler
// acquires the coordinator's scene lock through its public methods, mutates,
// and returns a small JSON status, while the WebSocket endpoint pushes
// scene_init/scene_update frames to live connections and accepts inbound
// joint_update messages.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/webkin/webkin/coordinator"
	"github.com/webkin/webkin/logging"
)

// Server wires the coordinator into an http.Handler. It owns no state of
// its own beyond the coordinator reference and logger; all scene state
// lives behind the coordinator's lock.
type Server struct {
	coord  *coordinator.Coordinator
	logger logging.Logger
	router chi.Router
}

// New builds a Server ready to be wrapped in an http.Server.
func New(coord *coordinator.Coordinator, logger logging.Logger) *Server {
	s := &Server{coord: coord, logger: logger}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.AllowAll().Handler)

	r.Get("/api/tree", s.handleGetTree)
	r.Post("/api/tree", s.handlePostTree)
	r.Get("/api/scene", s.handleGetScene)
	r.Post("/api/joints", s.handlePostJoints)
	r.Post("/api/offset/set_zero", s.handleSetZero)
	r.Post("/api/axis/override", s.handleAxisOverride)
	r.Get("/api/axis/overrides", s.handleGetOverrides)
	r.Delete("/api/axis/overrides", s.handleClearAllOverrides)
	r.Delete("/api/axis/overrides/{name}", s.handleClearOneOverride)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs method, path, status, and duration at debug level.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debugw("request", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "duration", time.Since(start))
		})
	}
}
