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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-roster-api/api/swagger"
	"github.com/noah-isme/student-roster-api/internal/handler"
	"github.com/noah-isme/student-roster-api/internal/models"
	"github.com/noah-isme/student-roster-api/internal/repository"
	"github.com/noah-isme/student-roster-api/internal/service"
	"github.com/noah-isme/student-roster-api/pkg/cache"
	"github.com/noah-isme/student-roster-api/pkg/config"
	"github.com/noah-isme/student-roster-api/pkg/database"
	"github.com/noah-isme/student-roster-api/pkg/logger"
)

// @title Student Roster API
// @version 1.0.0
// @description Paginated listing, search and maintenance of student records
// @BasePath /
// @schemes http

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		log.Printf("roster-api: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logr); err != nil {
		logr.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

// serve runs the API until ctx is cancelled or the listener fails. Every
// resource it opens is released before it returns.
func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return fmt.Errorf("open %s record store: %w", cfg.Store.Driver, err)
	}
	defer closeStore()

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, page cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
		}
	}

	students := service.NewStudentService(store, validator.New(), cacheSvc, metrics, service.StudentServiceConfig{
		DefaultLimit: cfg.Pagination.DefaultLimit,
		MaxLimit:     cfg.Pagination.MaxLimit,
	}, logr)
	exports := service.NewExportService(store, logr)

	router := handler.NewRouter(handler.RouterOptions{
		Students:       handler.NewStudentHandler(students, exports),
		Metrics:        handler.NewMetricsHandler(metrics, students, logr),
		MetricsService: metrics,
		Logger:         logr,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		APIPrefix:      cfg.APIPrefix,
		EnableDocs:     cfg.Env != config.EnvProduction,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore connects the record store selected by STORE_DRIVER and returns
// it with its release function.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (studentStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigratePostgres(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return repository.NewStudentRepository(db), func() { _ = db.Close() }, nil

	case config.StoreDriverMongo:
		client, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewStudentMongoRepository(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection, cfg.Store.Locale)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.StoreDriverMemory, "":
		logr.Warn("using in-memory record store; data is lost on restart")
		return repository.NewStudentMemoryRepository(cfg.Store.Locale), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
