// Package main serves the Walk the World web client.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rigellute/walk-the-world-frontend/pkg/app"
	"github.com/Rigellute/walk-the-world-frontend/pkg/config"
)

func main() {
	cfg := config.NewFromEnv()

	server, err := app.NewServer(cfg, true)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddress)
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down")
		if err := server.Close(); err != nil {
			log.Printf("[ERROR] shutdown: %v", err)
		}
	}
}
