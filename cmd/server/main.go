package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal_room/internal/config"
	"deal_room/internal/domain"
	"deal_room/internal/handler"
	"deal_room/internal/middleware"
	"deal_room/internal/repository"
	"deal_room/internal/service"
	"deal_room/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)

	ctx := context.Background()

	// PostgreSQL только для драйвера postgres, иначе комнаты живут в памяти
	var dbPool *pgxpool.Pool
	if cfg.Storage.Driver == config.StorageDriverPostgres {
		dbPool, err = connectPostgres(ctx, cfg.Database)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", "error", err)
		}
		defer dbPool.Close()
		appLogger.Info("Database connection established")

		if cfg.Database.MigrateOnStart {
			if err := repository.RunMigrations(ctx, dbPool); err != nil {
				appLogger.Fatal("Failed to apply migrations", "error", err)
			}
			appLogger.Info("Database migrations applied")
		}
	}

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	files, err := service.NewS3FileStorage(ctx, cfg.S3, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize document storage", "error", err)
	}

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	services := service.NewServices(repos, files, cfg, appLogger)
	handlers := handler.NewHandlers(services, repos, cfg, appLogger)

	router := setupRouter(handlers, services, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func setupRouter(handlers *handler.Handlers, services *service.Services, cfg *config.Config, log logger.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	identity := middleware.NewIdentityMiddleware(cfg.JWT, log)
	rateLimit := middleware.NewRateLimitMiddleware(services.RateLimit, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	handlers.Register(router, handler.RouteMiddleware{
		Auth:       identity.RequireAuth(),
		SocketAuth: identity.RequireAuthWithQueryToken(),
		MessageLimit: rateLimit.Limit(domain.RateLimitRule{
			Scope:  domain.RateLimitScopeMessages,
			Limit:  cfg.RateLimit.MessagesPerMinute,
			Window: time.Minute,
		}),
		UploadLimit: rateLimit.Limit(domain.RateLimitRule{
			Scope:  domain.RateLimitScopeUploads,
			Limit:  cfg.RateLimit.UploadsPerMinute,
			Window: time.Minute,
		}),
	})

	return router
}
