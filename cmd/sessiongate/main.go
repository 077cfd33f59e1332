// cmd/sessiongate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sessiongate/internal/config"
	"sessiongate/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	issueToken := flag.String("issue-token", "", "print a session token for this subject and exit")
	listSettings := flag.Bool("settings", false, "list the configuration settings with their defaults and exit")
	flag.Parse()

	if *listSettings {
		if err := config.Settings.Print(os.Stdout); err != nil {
			log.Fatalf("Failed to list settings: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *issueToken != "" {
		signer, err := server.NewTokenSigner(cfg)
		if err != nil {
			log.Fatalf("Failed to create token signer: %v", err)
		}
		token, err := signer.Issue(*issueToken)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutting down gracefully...")
	case err := <-errCh:
		fmt.Printf("Server error: %v\n", err)
	}

	if err := srv.Stop(context.Background()); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	fmt.Println("Server stopped successfully")
}
