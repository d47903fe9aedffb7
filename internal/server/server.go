// Package server is the composition root of the HTTP API.
//
// New opens the database and wires every layer:
//
//	sqlite.DB ──┬─► aggregate.Engine ──┐
//	            └─► services ◄─────────┴── steam.Client
//	                   │
//	                handlers ─► chi router
//
// Each layer only receives what it needs. Services get repository
// interfaces, never *sqlite.DB directly; handlers get services, never the
// database.
//
// Starting and stopping the listener is the supervisor's job (see
// internal/supervisor); Server only builds the *http.Server.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/sakif/steam-arena/internal/aggregate"
	"github.com/sakif/steam-arena/internal/config"
	"github.com/sakif/steam-arena/internal/handler"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/middleware"
	sqliteRepo "github.com/sakif/steam-arena/internal/repository/sqlite"
	"github.com/sakif/steam-arena/internal/service"
	"github.com/sakif/steam-arena/internal/steam"
)

// Server owns the database connection and the router.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db       *sqliteRepo.DB
	sync     *service.SyncService
	playtime *service.PlaytimeService
}

// New opens the database at cfg.Database.Path, runs migrations and builds
// the router. The caller must Close the server.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes wires services, handlers and routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP: identify the request and the client
//  2. Logger, metrics: observe everything below, panics included
//  3. Recoverer: turn a panic into a 500
//  4. CORS, rate limit: reject before any handler work
func (s *Server) setupRoutes() {
	engine := aggregate.NewEngine(s.db)
	steamClient := steam.NewClient(steam.Config{
		APIKey:            s.cfg.Steam.APIKey,
		BaseURL:           s.cfg.Steam.BaseURL,
		StoreURL:          s.cfg.Steam.StoreURL,
		Timeout:           s.cfg.Steam.Timeout,
		RequestsPerSecond: s.cfg.Steam.RequestsPerSecond,
		Burst:             s.cfg.Steam.Burst,
	}, s.logger)

	// One *sqlite.DB satisfies every repository interface.
	userService := service.NewUserService(s.db, s.db, engine, s.logger)
	gameService := service.NewGameService(s.db, s.db, engine, s.logger)
	groupService := service.NewGroupService(s.db, engine, s.logger)
	compareService := service.NewCompareService(engine, s.logger)
	dashboardService := service.NewDashboardService(s.db, s.db, s.db, s.db, s.db, engine, s.logger)
	backlogService := service.NewBacklogService(s.db, s.db, s.db, s.logger)
	s.sync = service.NewSyncService(steamClient, service.SyncRepos{
		Users:        s.db,
		Games:        s.db,
		Ownership:    s.db,
		Achievements: s.db,
		Groups:       s.db,
		History:      s.db,
		Taxonomy:     s.db,
	}, s.cfg.Sync.Concurrency, s.logger)
	s.playtime = service.NewPlaytimeService(s.db, s.logger)

	users := handler.NewUserHandler(userService, s.sync, s.logger)
	games := handler.NewGameHandler(gameService, s.sync, s.logger)
	groups := handler.NewGroupHandler(groupService, s.sync, s.logger)
	compare := handler.NewCompareHandler(compareService, s.logger)
	dashboard := handler.NewDashboardHandler(dashboardService, s.logger)
	backlog := handler.NewBacklogHandler(backlogService, s.logger)
	playtime := handler.NewPlaytimeHandler(s.playtime, s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(metrics.Middleware())
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/healthz", health.HandleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.Server.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.Server.RateLimit, s.cfg.Server.RateLimitWindow))
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", users.HandleList)
			r.Post("/", users.HandleRegister)
			r.Get("/steam/{steamId}", users.HandleGetBySteamID)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", users.HandleGet)
				r.Delete("/", users.HandleDelete)
				r.Get("/games", users.HandleGames)
				r.Delete("/games/{gameId}/playtime", users.HandleResetPlaytime)
				r.Get("/sync-history", users.HandleSyncHistory)
				r.Post("/sync/{kind}", users.HandleSync)
				r.Get("/backlog", backlog.HandleList)
				r.Post("/backlog", backlog.HandleAdd)
				r.Put("/backlog/{entryId}", backlog.HandleUpdate)
				r.Delete("/backlog/{entryId}", backlog.HandleRemove)
				r.Get("/playtime/yearly", playtime.HandleYearly)
				r.Get("/playtime/monthly", playtime.HandleMonthly)
			})
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", games.HandleList)
			r.Get("/popular", games.HandlePopular)
			r.Get("/most-played", games.HandleMostPlayed)
			r.Get("/genres", games.HandleGenres)
			r.Get("/genres/{id}/games", games.HandleGenreGames)
			r.Get("/app/{appId}", games.HandleGetByAppID)
			r.Post("/app/{appId}/sync", games.HandleSyncDetails)
			r.Get("/{id}", games.HandleGet)
			r.Get("/{id}/owners", games.HandleOwners)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groups.HandleList)
			r.Post("/", groups.HandleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", groups.HandleGet)
				r.Put("/", groups.HandleUpdate)
				r.Delete("/", groups.HandleDelete)
				r.Post("/members", groups.HandleAddMembers)
				r.Delete("/members/{userId}", groups.HandleRemoveMember)
				r.Get("/intersection", groups.HandleIntersection)
				r.Get("/game-intersection", groups.HandleGameIntersection)
				r.Get("/comparison", groups.HandleComparison)
				r.Post("/sync", groups.HandleSync)
			})
		})

		r.Get("/compare", compare.HandleCompare)

		r.Get("/dashboard/stats", dashboard.HandleStats)
		r.Get("/dashboard/users/{id}", dashboard.HandleUser)
		r.Get("/dashboard/users/{id}/playtime-by-genre", dashboard.HandlePlaytimeByGenre)

		r.Post("/playtime/snapshots", playtime.HandleSnapshot)
		r.Get("/playtime/snapshots", playtime.HandleSnapshotHistory)
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer builds the listener configuration for the supervisor.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
}

// SyncService is shared with the resync worker so scheduled and
// on-demand syncs go through the same code.
func (s *Server) SyncService() *service.SyncService {
	return s.sync
}

// PlaytimeService is shared with the snapshot worker.
func (s *Server) PlaytimeService() *service.PlaytimeService {
	return s.playtime
}

// Close releases the database. Call it after the HTTP server has stopped.
func (s *Server) Close() error {
	return s.db.Close()
}
