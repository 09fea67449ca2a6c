package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-library/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	photosHandler := handlers.NewPhotosHandler(s.deps.Store, s.deps.Ingest, s.config.Ingest.MaxUploadSize, s.logger)
	peopleHandler := handlers.NewPeopleHandler(s.deps.Store, s.logger)
	avatarsHandler := handlers.NewAvatarsHandler(s.deps.Avatars)
	filesHandler := handlers.NewFilesHandler(s.deps.Blobs)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": s.deps.Store,
		"storage":  s.deps.Blobs,
	})

	// Health check and metrics
	s.router.Get("/api/health", healthHandler.Check)
	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Photos
		r.Post("/photos", photosHandler.Upload)
		r.Get("/photos/count-per-day", photosHandler.CountPerDay)
		r.Get("/photos/for-day/{date}", photosHandler.ForDay)
		r.Get("/photos/{id:[0-9]+}", photosHandler.Get)
		r.Get("/photos/{id:[0-9]+}/appearances", photosHandler.Appearances)

		// People
		r.Get("/people", peopleHandler.List)
		r.Get("/people/{id:[0-9]+}", peopleHandler.Get)
		r.Put("/people/{id:[0-9]+}", peopleHandler.Update)
		r.Post("/people/{dst:[0-9]+}/merge/{src:[0-9]+}", peopleHandler.Merge)
		r.Get("/people/{id:[0-9]+}/avatar", avatarsHandler.Person)

		// Appearances
		r.Get("/appearances/{id:[0-9]+}/avatar", avatarsHandler.Appearance)
	})

	// Stored photos and thumbnails
	s.router.Get("/static/photos/{month}/{file}", filesHandler.Photo)
	s.router.Get("/static/thumbs/{month}/{file}", filesHandler.Thumb)

	// Web client
	s.router.Handle("/static/*", s.site.Assets("/static"))
	s.router.Get("/*", s.site.Index)
}
