// Package app wires the curation service together: repository, prefix
// converter, controller backend, handlers and router.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ontomap/sssom-curator/internal/curation"
	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/db"
	"github.com/ontomap/sssom-curator/internal/http/handlers"
	"github.com/ontomap/sssom-curator/internal/observability"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/repository"
)

type App struct {
	Log        *logger.Logger
	Cfg        Config
	Repo       *repository.Repository
	Converter  *curies.Converter
	Controller curation.Controller
	Router     *gin.Engine

	otelShutdown func(context.Context) error
}

// New assembles the service for the repository at the given config path.
// targets, when non-nil, restricts curation to mappings touching those
// references.
func New(repoPath string, targets []curies.Reference) (*App, error) {
	cfg := LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	repo, err := repository.Load(repoPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load repository: %w", err)
	}
	converter, err := repo.Converter()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("assemble converter: %w", err)
	}

	controller, err := buildController(cfg, repo, converter, log, targets)
	if err != nil {
		log.Sync()
		return nil, err
	}

	count, err := controller.Count(curation.Query{}.Unbounded())
	if err != nil {
		log.Sync()
		return nil, err
	}
	if count == 0 {
		log.Warn("There are no predictions to curate")
	}

	var defaultAuthors []curies.Reference
	if repo.User != "" {
		author, err := repo.UserReference()
		if err != nil {
			log.Sync()
			return nil, err
		}
		defaultAuthors = []curies.Reference{author}
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "sssom-curator",
	})

	curationHandler := handlers.NewCurationHandler(log, controller, defaultAuthors, cfg.EagerPersist)
	healthHandler := handlers.NewHealthHandler()
	router := wireRouter(log, cfg, curationHandler, healthHandler)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Repo:         repo,
		Converter:    converter,
		Controller:   controller,
		Router:       router,
		otelShutdown: otelShutdown,
	}, nil
}

func buildController(
	cfg Config,
	repo *repository.Repository,
	converter *curies.Converter,
	log *logger.Logger,
	targets []curies.Reference,
) (curation.Controller, error) {
	switch cfg.Backend {
	case BackendMemory:
		return curation.NewMemoryController(repo, converter, log, targets)
	case BackendDatabase:
		gormDB, err := openDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		return curation.NewDatabaseController(gormDB, repo, converter, log, targets, true)
	default:
		return nil, &curation.ConfigurationError{Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

func openDatabase(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	if cfg.UsePostgres {
		service, err := db.NewPostgresService(log)
		if err != nil {
			return nil, err
		}
		if err := service.AutoMigrateAll(); err != nil {
			return nil, err
		}
		return service.DB(), nil
	}
	service, err := db.NewSQLiteService(cfg.SQLitePath, log)
	if err != nil {
		return nil, err
	}
	if err := service.AutoMigrateAll(); err != nil {
		return nil, err
	}
	return service.DB(), nil
}

// Run serves HTTP until the listener fails.
func (a *App) Run() error {
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Router.Run(addr)
}

// Close flushes logs and shuts tracing down.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
