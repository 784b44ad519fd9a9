package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"corpuscrawler/cmd/corpus-crawler/app"
	"corpuscrawler/internal/limiter"
)

func main() {
	httpClient := &http.Client{}

	clock := limiter.NewClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := app.Run(ctx, os.Args, os.Stdout, os.Stderr, httpClient, clock)
	stop()

	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
