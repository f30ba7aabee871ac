package server

import (
	"context"
	"sync"

	"expdash/internal/engine"
	"expdash/internal/eventlog"
	"expdash/internal/records"
	"expdash/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Server exposes the dashboard API over HTTP.
type Server struct {
	app     *fiber.App
	records records.Client
	engine  engine.Client
	events  *eventlog.Store

	cacheDir string

	sessionMutex sync.RWMutex
	sessions     map[string]*workflow.Session

	lookupMutex sync.Mutex
	lookups     *records.Lookups
}

// New creates the HTTP server and registers all routes. cacheDir is where
// per-session run logs are persisted on shutdown.
func New(recordsClient records.Client, engineClient engine.Client, events *eventlog.Store, cacheDir string) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{BodyLimit: 64 * 1024 * 1024}),
		records:  recordsClient,
		engine:   engineClient,
		events:   events,
		cacheDir: cacheDir,
		sessions: make(map[string]*workflow.Session),
	}

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")

	api.Get("/experiments", s.ListExperiments)
	api.Get("/experiments/:id", s.GetExperiment)
	api.Patch("/experiments/:id", s.PatchExperiment)
	api.Post("/experiments/:id/images/:kind", s.UploadExperimentImage)
	api.Delete("/experiments/:id/images/:kind", s.DeleteExperimentImage)
	api.Get("/dashboard/summary", s.DashboardSummary)
	api.Get("/timeline", s.Timeline)
	api.Get("/kanban", s.Kanban)

	api.Post("/workflow", s.CreateSession)
	api.Get("/workflow/:id", s.GetSession)
	api.Post("/workflow/:id/dataset", s.UploadDataset)
	api.Post("/workflow/:id/next", s.NextStep)
	api.Post("/workflow/:id/back", s.BackStep)
	api.Post("/workflow/:id/run", s.StartRun)
	api.Get("/workflow/:id/run", s.GetRun)
	api.Post("/workflow/:id/transactions", s.UploadTransactions)
	api.Post("/workflow/:id/filters", s.ApplyFilters)
	api.Get("/workflow/:id/events", s.RunEvents)

	return s
}

// Listen starts serving on the given address (blocking).
func (s *Server) Listen(addr string) error {
	log.Info().Str("addr", addr).Msg("Dashboard API listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server, cancels every active run poller and
// persists the per-session run logs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessionMutex.RLock()
	for id, session := range s.sessions {
		if run := session.Run(); run != nil {
			run.Cancel()
		}
		if s.cacheDir != "" {
			if err := s.events.Save(s.cacheDir, id); err != nil {
				log.Warn().Err(err).Str("session", id).Msg("Failed to persist run log")
			}
		}
	}
	s.sessionMutex.RUnlock()

	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) session(id string) (*workflow.Session, bool) {
	s.sessionMutex.RLock()
	defer s.sessionMutex.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// resolveLookups fetches the linked-record lookups once and caches them for
// the lifetime of the process; the auxiliary tables change rarely.
func (s *Server) resolveLookups(ctx context.Context) *records.Lookups {
	s.lookupMutex.Lock()
	defer s.lookupMutex.Unlock()

	if s.lookups != nil {
		return s.lookups
	}

	lookups, err := s.records.ResolveLookups(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Linked-record lookups unavailable, falling back to raw ids")
		return nil
	}
	s.lookups = lookups
	return lookups
}
