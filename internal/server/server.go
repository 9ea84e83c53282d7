package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/imagehoster/server/config"
	"github.com/imagehoster/server/internal/auth"
	"github.com/imagehoster/server/internal/db"
	"github.com/imagehoster/server/internal/handlers"
	"github.com/imagehoster/server/internal/logging"
	"github.com/imagehoster/server/internal/mq"
	"github.com/imagehoster/server/internal/password"
	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/internal/storage"
	"github.com/imagehoster/server/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server, the router and every long lived resource
// the handlers depend on.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	backuper   *storage.Backuper
}

// New opens the database pool and the optional backends, then builds the
// router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn}

	if err := s.setup(ctx, cfg); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context, cfg config.Config) error {
	gormDB, err := store.NewGorm(s.db, db.Driver(cfg.Database))
	if err != nil {
		return err
	}

	imageService := services.NewImageService(store.NewImageRepository(gormDB))
	tagService := services.NewTagService(store.NewTagRepository(gormDB))
	userService := services.NewUserService(store.NewUserRepository(gormDB))
	photoService := services.NewProfilePhotoService(store.NewProfilePhotoRepository(gormDB))

	hasher, err := password.NewHasher(cfg.PasswordScheme)
	if err != nil {
		return err
	}

	sessions, err := s.sessionManager(ctx, cfg)
	if err != nil {
		return err
	}

	s.mq, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fmt.Errorf("connect message queue: %w", err)
	}
	publisher := mq.NewPublisher(s.mq, cfg.MQ.Channel)

	if err := s.scheduleBackups(ctx, cfg.Storage, imageService); err != nil {
		return err
	}

	view, err := handlers.NewRenderer()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		sessions.LoadSession,
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.ImageRouter(router, view, imageService, tagService, publisher)
	handlers.TagRouter(router, view, imageService)
	handlers.UserRouter(router, view, userService, photoService, sessions, hasher)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// sessionManager keeps sessions in Redis when an address is configured
// and in memory otherwise.
func (s *Server) sessionManager(ctx context.Context, cfg config.Config) (*auth.Manager, error) {
	var sessionStore auth.SessionStore
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = rdb
		sessionStore = auth.NewRedisSessionStore(rdb, cfg.Session.TTL)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, sessions are kept in memory")
		sessionStore = auth.NewMemorySessionStore(cfg.Session.TTL)
	}

	manager, err := auth.NewManager(sessionStore, cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("SESSION_SECRET: %w", err)
	}
	manager.SetSecureCookies(cfg.Session.SecureCookie)
	return manager, nil
}

func (s *Server) scheduleBackups(ctx context.Context, cfg config.StorageConfig, images *services.ImageService) error {
	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect object storage: %w", err)
	}
	if objects == nil {
		return nil
	}
	if strings.TrimSpace(cfg.BackupSchedule) == "" {
		log.Info().Str("bucket", objects.Bucket()).Msg("Object storage configured without BACKUP_SCHEDULE")
		return nil
	}

	s.backuper = storage.NewBackuper(images, objects)
	return s.backuper.Start(cfg.BackupSchedule)
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.backuper != nil {
		s.backuper.Stop()
	}
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close message queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
