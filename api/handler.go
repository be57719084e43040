package handler

import (
	"log"
	"net/http"
	"os"

	"github.com/Rigellute/walk-the-world-frontend/pkg/app"
	"github.com/Rigellute/walk-the-world-frontend/pkg/config"
)

var handler http.Handler

func init() {
	// HTTP_ADDRESS is required by config but unused here, since the
	// platform owns the listener.
	if os.Getenv("HTTP_ADDRESS") == "" {
		os.Setenv("HTTP_ADDRESS", ":8080")
	}

	cfg := config.NewFromEnv()

	// Any instance may serve any request, so sessions only work when every
	// instance opens cookies with the same secret.
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET must be set for serverless deployments")
	}

	// Instances do not share limiter state, so rate limiting is left to the
	// platform.
	server, err := app.NewServer(cfg, false)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	handler = server.Router()

	log.Println("Server initialized for Vercel")
}

// Handler is the entry point for Vercel serverless functions.
func Handler(w http.ResponseWriter, r *http.Request) {
	handler.ServeHTTP(w, r)
}
