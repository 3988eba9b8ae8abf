package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/roadworks/boq-generator/internal/config"
	"github.com/roadworks/boq-generator/internal/formula"
	httpapi "github.com/roadworks/boq-generator/internal/interfaces/http"
	"github.com/roadworks/boq-generator/internal/processor"
	"github.com/roadworks/boq-generator/internal/session"
	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worker"
	"github.com/roadworks/boq-generator/pkg/database"
	"github.com/roadworks/boq-generator/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Local overrides from .env, when present
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting BOQ generator service",
		zap.Int("port", cfg.Server.Port),
		zap.String("template_workbook", cfg.Pipeline.TemplateWorkbook))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.SessionsDir, 0o755); err != nil {
		logger.Fatal("Failed to create sessions directory", zap.Error(err))
	}
	if _, err := os.Stat(cfg.Pipeline.TemplateWorkbook); err != nil {
		logger.Fatal("Template workbook not found",
			zap.String("path", cfg.Pipeline.TemplateWorkbook),
			zap.Error(err))
	}

	sessionRepo := session.NewRepository(db.DB, logger)
	folders := storage.NewFolderManager(cfg.Storage.SessionsDir, logger)
	files := storage.NewLocalFileStorage(cfg.Storage.SessionsDir, logger)
	sessions := session.NewManager(sessionRepo, folders, files, logger)

	store := formula.NewStore(cfg.Pipeline.TemplatesDir, logger)
	applier := formula.NewApplier(formula.ApplierConfig{HeaderRow: cfg.Pipeline.HeaderRow}, logger)
	validator := formula.NewValidator(logger)

	processors := []processor.Processor{
		processor.NewScheduleProcessor(logger),
		processor.NewTCSInputProcessor(logger),
		processor.NewEmbankmentProcessor(logger),
		processor.NewPavementProcessor(logger),
		processor.NewConstantFillProcessor(cfg.Pipeline.Constants, logger),
	}

	pipeline := processor.NewPipeline(processor.PipelineConfig{
		TemplateWorkbook: cfg.Pipeline.TemplateWorkbook,
		SheetName:        cfg.Pipeline.SheetName,
		StartRow:         cfg.Pipeline.StartRow,
		RefColumn:        cfg.Pipeline.ReferenceColumn,
		MainTemplate:     cfg.Pipeline.MainTemplate,
		FinalSumTemplate: cfg.Pipeline.FinalSumTemplate,
	}, processors, store, applier, validator, logger)

	calculations := worker.NewCalculationWorker(pipeline, sessions,
		cfg.Worker.QueueSize, cfg.Worker.JobTimeout, logger)

	workers := worker.NewManager(logger)
	workers.Register(calculations)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}
	defer workers.StopAll()

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	}, sessions, calculations, logger)

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
