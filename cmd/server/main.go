package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collab-docs/internal/api"
	"collab-docs/internal/config"
	"collab-docs/internal/db"
	"collab-docs/internal/repository"
	"collab-docs/internal/services"
	"collab-docs/internal/services/collaboration"
	"collab-docs/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting collaborative document service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing first so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("collab-docs", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Initialize GORM database
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(database.DB)

	// Snapshot worker pool: persists the latest state of live documents
	// without ever blocking the broadcast path
	snapService := services.NewSnapshotService(docRepo, cfg.SnapshotWorkers, cfg.SnapshotQueueSize)
	snapService.Start()

	// Session manager: presence registry and document state broadcaster
	sessionManager := collaboration.NewSessionManager()
	sessionManager.SetSnapshotService(snapService)
	sessionManager.Start()

	// WebSocket handler resolves initial document state before joins land
	wsHandler := collaboration.NewWebSocketHandler(sessionManager)
	wsHandler.SetDocumentResolver(docRepo)

	// Initialize handlers with dependency injection
	handler := api.NewHandler(docRepo, snapService, wsHandler, sessionManager)

	// Setup routes
	router := api.SetupRoutes(handler)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine so shutdown signals are handled below
	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 Endpoints:")
		log.Printf("   POST   /api/documents                     - Create document")
		log.Printf("   GET    /api/documents                     - List documents")
		log.Printf("   GET    /api/documents/:id                 - Get document")
		log.Printf("   PUT    /api/documents/:id                 - Update document")
		log.Printf("   DELETE /api/documents/:id                 - Delete document (soft)")
		log.Printf("   GET    /api/documents/:id/collaborators   - Live presence roster")
		log.Printf("   WS     /ws/editor/:id                     - Editing session")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	// Give the server 30 seconds to finish existing requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Close live sessions first so their final snapshots enter the queue,
	// then drain the snapshot pool
	sessionManager.Shutdown()
	snapService.Shutdown()

	log.Println("✓ Server shutdown complete")
}
