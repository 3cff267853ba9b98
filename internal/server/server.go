package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wastewatch/internal/config"
	"wastewatch/internal/storage"
)

// Server exposes the deriver over HTTP: dataset upload, mapping detection,
// derivation with product/year filters, report summaries, and CSV download.
type Server struct {
	db  *storage.DB
	cfg config.Config
}

func New(db *storage.DB, cfg config.Config) *Server {
	return &Server{db: db, cfg: cfg}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/datasets", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleListDatasets)
		r.Get("/{id}", s.handleGetDataset)
		r.Post("/{id}/derive", s.handleDerive)
		r.Post("/{id}/matches", s.handleMatches)
		r.Post("/{id}/reports/{tab}", s.handleReport)
		r.Post("/{id}/insights", s.handleInsights)
		r.Post("/{id}/export.csv", s.handleExportCSV)
	})

	return r
}

func (s *Server) ListenAndServe() error {
	log.Printf("http server listening on %s", s.cfg.HTTPAddr)
	return http.ListenAndServe(s.cfg.HTTPAddr, s.Router())
}
