package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/stone-edge/queue_layer/internal/app/runtime"
)

func main() {
	appl, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := appl.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}

	if err := appl.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
