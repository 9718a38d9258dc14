package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"BSA-TMPL/internal"
	"BSA-TMPL/internal/config"
	"BSA-TMPL/internal/handlers"
	"BSA-TMPL/internal/logger"
	"BSA-TMPL/internal/mapper"
	"BSA-TMPL/internal/services"
	"BSA-TMPL/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	baseLog, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer baseLog.Sync()

	db, err := internal.InitDB(cfg)
	if err != nil {
		baseLog.Fatal("failed to init database", "error", err)
	}
	baseLog.Info("database connected and migrated")

	store := services.NewInstanceStore(db, baseLog)
	manager := services.NewTemplateManager(store, mapper.New(baseLog), baseLog)

	templatesHandler := handlers.NewTemplatesHandler(manager)

	retention := services.NewReceiptRetentionService(db, baseLog, cfg.Retention.ReceiptMaxAge, cfg.Retention.SweepInterval)
	retention.Start()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		baseLog.Info("shutting down server")
		retention.Stop()
		if err := internal.CloseDB(db); err != nil {
			baseLog.Error("failed to close database", "error", err)
		}
		baseLog.Sync()
		os.Exit(0)
	}()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.RequestLogger(baseLog))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/kinds", templatesHandler.ListKinds)

		// Template generation and reads
		v1.POST("/templates/generate", templatesHandler.GenerateFromAnalysis)
		v1.GET("/templates/:userId", templatesHandler.ListInstances)
		v1.GET("/templates/:userId/:documentKind", templatesHandler.GetInstance)

		// Per-instance operations
		v1.POST("/instances/:instanceId/customize", templatesHandler.CustomizeField)
		v1.POST("/instances/:instanceId/versions", templatesHandler.SnapshotVersion)
		v1.GET("/instances/:instanceId/versions", templatesHandler.ListVersions)
		v1.GET("/instances/:instanceId/customizations", templatesHandler.ListCustomizations)
		v1.POST("/instances/:instanceId/archive", templatesHandler.ArchiveInstance)
	}

	// Export routes need GCS; skip them when no bucket is configured.
	if cfg.GCS.BucketName != "" {
		gcsClient, err := storage.NewGCSClient(context.Background(), cfg.GCS.BucketName, cfg.GCS.ProjectID, cfg.GCS.CredentialsPath)
		if err != nil {
			baseLog.Fatal("failed to init GCS client", "error", err)
		}
		defer gcsClient.Close()

		exportService := services.NewExportService(gcsClient, store, baseLog)
		downloadsHandler := handlers.NewDownloadsHandler(exportService, store)
		v1.POST("/instances/:instanceId/export", downloadsHandler.ExportInstance)
		v1.GET("/instances/:instanceId/downloads", downloadsHandler.ListDownloads)
	} else {
		baseLog.Warn("GCS_BUCKET_NAME not set, export endpoints disabled")
	}

	baseLog.Info("starting server", "port", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		baseLog.Fatal("server exited", "error", err)
	}
}
