// Package server wires configuration, storage, services and HTTP routing
// into a runnable API server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/campuslife/apiserver/config"
	"github.com/campuslife/apiserver/internal/auth"
	"github.com/campuslife/apiserver/internal/cache"
	"github.com/campuslife/apiserver/internal/db"
	"github.com/campuslife/apiserver/internal/events"
	"github.com/campuslife/apiserver/internal/handlers"
	"github.com/campuslife/apiserver/internal/metrics"
	appmiddleware "github.com/campuslife/apiserver/internal/middleware"
	"github.com/campuslife/apiserver/internal/services"
	"github.com/campuslife/apiserver/internal/storage"
	"github.com/campuslife/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	requestTimeout   = 60 * time.Second
	shutdownTimeout  = 10 * time.Second
	responseCacheTTL = 5 * time.Minute
)

// Server owns the HTTP listener and every long-lived dependency behind it.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	publisher  *events.Publisher
	logger     *slog.Logger
}

// New builds a fully wired server from the configuration. It connects to the
// database, the object store and the optional event broker, and fails fast
// when a required dependency is missing.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	database, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	mediaStore, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("init media store: %w", err)
	}
	if err := mediaStore.EnsureBucket(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensure media bucket: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCAudience)
	if err != nil {
		database.Close()
		publisher.Close()
		return nil, fmt.Errorf("init oidc verifier: %w", err)
	}

	sessions := auth.NewSessions(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	registry := metrics.NewRegistry()
	responseCache := cache.New(responseCacheTTL)

	userRepo := store.NewUserRepository(database)
	postRepo := store.NewPostRepository(database)

	resolver := services.NewIdentityResolver(userRepo, cfg.Auth.AdminEmails, logger)
	postService := services.NewPostService(postRepo, mediaStore, responseCache, registry, publisher, logger)
	userService := services.NewUserService(userRepo, publisher, logger)

	authHandler := handlers.NewAuthHandler(verifier, sessions, resolver, publisher, logger, cfg.Auth.RequiredDomain)
	postHandler := handlers.NewPostHandler(postService, responseCache, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	mediaHandler := handlers.NewMediaHandler(mediaStore, logger)
	healthHandler := handlers.NewHealthHandler(database)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(appmiddleware.RateLimiter(cfg.RateLimit))
	router.Use(appmiddleware.Metrics(registry))

	router.Get("/healthz", healthHandler.Healthz)
	router.Get("/health/live", healthHandler.Live)
	router.Get("/health/ready", healthHandler.Ready)
	router.Get("/metrics", registry.Handler())

	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/api/posts", func(r chi.Router) {
		handlers.PostRouter(r, postHandler, authHandler.RequireAuth)
	})
	router.Route("/api/media", func(r chi.Router) {
		handlers.MediaRouter(r, mediaHandler, authHandler.RequireAuth)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, authHandler.RequireAuth, handlers.RequireAdmin)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
			Handler: router,
		},
		db:        database,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes long-lived dependencies.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.publisher.Close()
	if closeErr := s.db.Close(); err == nil {
		err = closeErr
	}
	return err
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig) (*storage.MediaStore, error) {
	switch cfg.Backend {
	case "minio":
		backend, err := storage.NewMinioBackend(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewMediaStore(backend), nil
	case "gcs":
		backend, err := storage.NewGCSBackend(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewMediaStore(backend), nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

func newPublisher(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (*events.Publisher, error) {
	switch cfg.Backend {
	case "":
		return events.NewPublisher(nil, logger), nil
	case "rabbitmq":
		backend, err := events.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend, logger), nil
	case "pubsub":
		backend, err := events.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend, logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
