// Command server runs the World Republic HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appserver "github.com/worldrepublic/republic/internal/app/server"
	"github.com/worldrepublic/republic/internal/platform/config"
	"github.com/worldrepublic/republic/internal/platform/otel"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}

	var cfg appserver.Config
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse environment: %v", err)
	}

	log.SetPrefix("[REPUBLIC] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "republic-server")
	if err != nil {
		log.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	if err := appserver.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
