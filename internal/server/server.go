package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/images"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers into one router.
// A nil redis client disables rate limiting on the auth routes.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.ClientURLs, cfg.IsDevelopment()))

	health := healthHandler(db)
	router.Get("/health", health)

	imageStore, err := images.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.URLPrefix, cfg.Uploads.MaxFileBytes, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	uploadsPath := strings.TrimSuffix(cfg.Uploads.URLPrefix, "/")
	router.Handle(uploadsPath+"/*", http.StripPrefix(uploadsPath+"/", http.FileServer(http.Dir(imageStore.Dir()))))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())
	categoryRepo := repository.NewCategoryRepository(db.DB())

	// Initialize services
	tracker := images.NewTracker(imageStore, logger)
	userService := service.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiry)
	productService := service.NewProductService(productRepo, categoryRepo, tracker, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(productService, logger)
	uploadHandler := transport.NewUploadHandler(imageStore, cfg.Uploads.MaxFiles, cfg.Uploads.MaxFileBytes, logger)

	authMiddleware := custommiddleware.AuthMiddleware(userService, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	var authLimits []func(http.Handler) http.Handler
	if redisClient != nil {
		authLimits = append(authLimits, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:auth",
		}, logger))
	}

	router.Route(cfg.Server.APIPrefix, func(r chi.Router) {
		r.Get("/health", health)
		userHandler.RegisterRoutes(r, authMiddleware, authLimits...)
		productHandler.RegisterRoutes(r, authMiddleware, adminMiddleware)
		uploadHandler.RegisterRoutes(r, authMiddleware, adminMiddleware)
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server, nil
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := db.Health()

		code, status := http.StatusOK, "ok"
		if stats["status"] != "up" {
			code, status = http.StatusServiceUnavailable, "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"db":     stats,
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
