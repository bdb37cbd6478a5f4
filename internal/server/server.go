// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it opens the stores, builds the
// upstream client, the line counter and the services, and connects handlers,
// middleware and routes.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB / redis.StateStore  → repository interfaces
//	  github.Client                 → upstream for services
//	  linecount.Runner              → line-count jobs
//	  services → handlers + relay   → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/sakif/repo-dashboard/internal/auth"
	"github.com/sakif/repo-dashboard/internal/config"
	"github.com/sakif/repo-dashboard/internal/github"
	"github.com/sakif/repo-dashboard/internal/handler"
	"github.com/sakif/repo-dashboard/internal/linecount"
	"github.com/sakif/repo-dashboard/internal/linecount/docker"
	"github.com/sakif/repo-dashboard/internal/middleware"
	"github.com/sakif/repo-dashboard/internal/relay"
	"github.com/sakif/repo-dashboard/internal/repository"
	redisRepo "github.com/sakif/repo-dashboard/internal/repository/redis"
	sqliteRepo "github.com/sakif/repo-dashboard/internal/repository/sqlite"
	"github.com/sakif/repo-dashboard/internal/service"
)

// sweepInterval is how often expired OAuth states are deleted.
const sweepInterval = time.Minute

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database, the optional Redis client, the line-count
// runner and counter, and the relay. Shutdown releases them in reverse order
// of creation.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	db      *sqliteRepo.DB
	redis   *goredis.Client // nil unless REDIS_ADDR is set
	counter linecount.Counter
	runner  *linecount.Runner
	relay   *relay.Relay
	auth    *service.AuthService

	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

// New builds every dependency from cfg and registers the routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === STORES ===
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	var states repository.StateRepository = db.States()
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redisRepo.NewClient(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.redis = client
		states = redisRepo.NewStateStore(client)
		logger.Info("oauth states stored in redis", slog.String("addr", cfg.RedisAddr))
	}

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.NewSealer(cfg.SealKey))
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	provider := auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURI)

	// === UPSTREAM ===
	upstream, err := github.New(cfg.GitHubAPIURL, cfg.UpstreamRateLimit, logger)
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("creating github client: %w", err)
	}

	// === LINE COUNTER ===
	s.counter = newCounter(cfg, logger)
	s.runner = linecount.NewRunner(s.counter, cfg.LineCountConcurrency, cfg.LineCountTimeout, logger)

	// === SERVICES ===
	s.auth = service.NewAuthService(states, provider, upstream, tokens, logger)
	repoService := service.NewRepoService(db.Repos(), db.LineJobs(), upstream, s.runner, cfg.GitHubAccessToken, logger)
	messageService := service.NewMessageService(db.Messages(), logger)
	contactService := service.NewContactService(upstream, logger)

	s.relay = relay.New(tokens, messageService, cfg.CORSOrigins, logger)

	s.setupRoutes(tokens,
		handler.NewAuthHandler(s.auth, logger),
		handler.NewRepoHandler(repoService, logger),
		handler.NewSocialHandler(messageService, contactService, logger),
	)

	s.startSweeper()
	return s, nil
}

// newCounter picks the line-count backend. A backend that cannot start does
// not stop the server; line counts then fail with "Failed to count lines".
func newCounter(cfg config.Config, logger *slog.Logger) linecount.Counter {
	switch cfg.LineCountBackend {
	case config.LineCountDocker:
		c, err := docker.New(docker.DefaultConfig(), logger)
		if err != nil {
			logger.Warn("docker line counter unavailable", slog.String("error", err.Error()))
			return unavailableCounter{err: err}
		}
		return c
	default:
		c, err := linecount.NewLocal(logger)
		if err != nil {
			logger.Warn("local line counter unavailable", slog.String("error", err.Error()))
			return unavailableCounter{err: err}
		}
		return c
	}
}

type unavailableCounter struct{ err error }

func (u unavailableCounter) Count(context.Context, linecount.Source) (int64, error) {
	return 0, fmt.Errorf("%w: %w", linecount.ErrCount, u.err)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                          → liveness
// GET    /ws                               → websocket relay (auth via first frame)
// GET    /api/auth/github                  → start login
// POST   /api/auth/github/callback         → finish login
// GET    /api/auth/me                      → profile          [auth]
// GET    /api/repos                        → list + refresh   [auth]
// POST   /api/repos/{id}/toggle-auto-review                   [auth]
// GET    /api/repos/{id}/stats                                [auth]
// GET    /api/repos/{id}/lines                                [auth]
// POST   /api/repos/{id}/lines/jobs                           [auth]
// GET    /api/line-jobs/{jobId}                               [auth]
// GET    /api/messages/{receiverId}                           [auth]
// GET    /api/contacts                                        [auth]
//
// MIDDLEWARE ORDER MATTERS:
// RequestID must run before Logger so the id is in the log line, and
// Recoverer sits inside Logger so a panic is still logged as a 500.
func (s *Server) setupRoutes(tokens *auth.TokenService, authH *handler.AuthHandler, repoH *handler.RepoHandler, socialH *handler.SocialHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s.router.Get("/healthz", handler.HandleHealth)
	s.router.Handle("/ws", s.relay)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/auth/github", authH.HandleLogin)
		r.Post("/auth/github/callback", authH.HandleCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/auth/me", authH.HandleMe)

			r.Get("/repos", repoH.HandleList)
			r.Post("/repos/{id}/toggle-auto-review", repoH.HandleToggleAutoReview)
			r.Get("/repos/{id}/stats", repoH.HandleStats)
			r.Get("/repos/{id}/lines", repoH.HandleLines)
			r.Post("/repos/{id}/lines/jobs", repoH.HandleStartLineJob)
			r.Get("/line-jobs/{jobId}", repoH.HandleLineJob)

			r.Get("/messages/{receiverId}", socialH.HandleMessages)
			r.Get("/contacts", socialH.HandleContacts)
		})
	})
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// startSweeper deletes expired OAuth states every sweepInterval until
// Shutdown.
func (s *Server) startSweeper() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	s.sweepDone = make(chan struct{})

	go func() {
		defer close(s.sweepDone)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.auth.SweepStates(ctx)
				if err != nil {
					s.logger.Warn("state sweep failed", slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					s.logger.Debug("expired oauth states removed", slog.Int64("count", n))
				}
			}
		}
	}()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close websocket clients, stop the runner, close the stores
func (s *Server) Start() error {
	defer s.Close()

	// A synchronous line count can take up to the runner timeout, so the
	// write deadline has to be longer than that.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.LineCountTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("lineCounter", s.config.LineCountBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		s.relay.Close()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases everything New created. It is safe to call once.
func (s *Server) Close() {
	s.stopSweep()
	<-s.sweepDone

	s.relay.Close()
	s.runner.Close()
	if c, ok := s.counter.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing line counter", slog.String("error", err.Error()))
		}
	}
	s.closeStores()
}

func (s *Server) closeStores() {
	if s.redis != nil {
		s.redis.Close()
	}
	s.db.Close()
}
