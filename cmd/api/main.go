// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kaigodx/care_sheet_gemini/configs"
	"github.com/kaigodx/care_sheet_gemini/internal/ai"
	"github.com/kaigodx/care_sheet_gemini/internal/api"
	"github.com/kaigodx/care_sheet_gemini/internal/pipeline"
	"github.com/kaigodx/care_sheet_gemini/internal/sheets"
	"github.com/kaigodx/care_sheet_gemini/internal/storage"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Create the UPLOAD_DIR folder if it doesn't exist
	if err := os.MkdirAll(configs.UPLOAD_DIR, 0755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	// Step 1.5: Run history is optional
	if configs.ENABLE_RUN_HISTORY {
		if err := storage.InitMongoDB(); err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer storage.CloseMongoDB()
	}

	// Step 2: Build the gateway and spreadsheet collaborators
	ctx := context.Background()
	gateway, err := ai.NewGeminiGateway(ctx, configs.GEMINI_API_KEY, configs.MODEL_NAME)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer gateway.Close()

	sheetsAPI, err := sheets.NewGoogleAPI(ctx, configs.SERVICE_ACCOUNT_PATH)
	if err != nil {
		log.Fatalf("Failed to create Sheets/Drive client: %v", err)
	}

	handlers := api.NewHandlers(&pipeline.Runner{
		Gateway: gateway,
		Sheets:  sheetsAPI,
	})

	// Step 3: Initialize the Gin router
	router := gin.Default()

	// Add CORS middleware - configure allowed origins for production
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", configs.ALLOWED_ORIGINS)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "care-sheet-gemini",
			"version": "1.0.0",
		})
	})

	// Step 4: Define the API routes
	router.POST("/api/v1/process/document", handlers.ProcessDocument)
	router.POST("/api/v1/process/audio", handlers.ProcessAudio)
	router.GET("/api/v1/runs", handlers.RecentRuns)

	// Step 5: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    5 * time.Minute, // audio uploads can be large
		WriteTimeout:   15 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on :%s", configs.PORT)
		log.Println("API Endpoints:")
		log.Println("  POST /api/v1/process/document")
		log.Println("  POST /api/v1/process/audio")
		log.Println("  GET  /api/v1/runs")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
