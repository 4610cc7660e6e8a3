package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/handlers"
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	hierarchyService := services.NewHierarchyService(db, storageClient)
	archiveBuilder := services.NewArchiveBuilder(db, storageClient)
	linkRegistry := services.NewMemoryLinkRegistry(cfg.Links.TTL)
	defer linkRegistry.Close()

	authHandler := handlers.NewAuthHandler(db)
	foldersHandler := handlers.NewFoldersHandler(hierarchyService)
	filesHandler := handlers.NewFilesHandler(db, storageClient, hierarchyService)
	linksHandler := handlers.NewLinksHandler(hierarchyService, archiveBuilder, linkRegistry, cfg.Links.ArchiveTimeout)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(middleware.Metrics())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", middleware.MetricsHandler())

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Post("/upload", authMiddleware.RequireAuth, filesHandler.Upload)
	api.Get("/files/:id/download", authMiddleware.RequireAuth, filesHandler.Download)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Get("/", foldersHandler.List)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/search", foldersHandler.Search)
	folderRoutes.Put("/rename", foldersHandler.Rename)
	folderRoutes.Put("/move", foldersHandler.Move)
	folderRoutes.Get("/parent/:folderId", foldersHandler.Parent)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	api.Post("/links", authMiddleware.RequireAuth, linksHandler.Issue)

	// Token possession is the credential here; no session required.
	api.Get("/download/:token", linksHandler.Download)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":       cfg.Server.Port,
		"address":    listenAddr,
		"body_limit": "100MB",
		"link_ttl":   cfg.Links.TTL.String(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
