// internal/handlers/router.go
package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/forca/internal/metrics"
	"github.com/jason-s-yu/forca/internal/middleware"
)

// NewRouter mounts the REST API, the room socket and /metrics.
func NewRouter(s *RoomServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/modules", func(r chi.Router) {
		r.Get("/", s.ListModulesHandler)
		r.Post("/", s.CreateModuleHandler)
		r.Get("/{id}", s.GetModuleHandler)
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", s.CreateRoomHandler)
		r.Get("/ws/{code}", s.RoomWSHandler)

		r.Route("/{code}", func(r chi.Router) {
			r.Use(s.roomCodeCtx)
			r.Get("/", s.GetRoomHandler)
			r.Delete("/", s.DeleteRoomHandler)
			r.Post("/join", s.JoinRoomHandler)
			r.Post("/start", s.StartGameHandler)
			r.Post("/finish", s.FinishRoomHandler)
			r.Get("/report", s.ReportHandler)

			r.Route("/players/{playerID}", func(r chi.Router) {
				r.Delete("/", s.LeaveRoomHandler)
				r.Post("/ready", s.ReadyHandler)
				r.Post("/guess", s.GuessHandler)
				r.Get("/board", s.BoardHandler)
			})
		})
	})

	return r
}

// OriginPatterns turns CORS origins such as "https://forca.example" into the
// host patterns the WebSocket origin check expects.
func OriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
