package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/JonMunkholm/SheetImport/internal/catalog" // Register all containers
	"github.com/JonMunkholm/SheetImport/internal/cli"
)

func main() {
	// A missing .env is fine; the environment still applies
	_ = godotenv.Overload()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		cli.ReportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
