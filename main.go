package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/locvowork/public_salaries/internal/bootstrap"
	"github.com/locvowork/public_salaries/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := bootstrap.NewApp()
	if err := app.Initialize(ctx); err != nil {
		logger.ErrorLog(ctx, err, "Failed to initialize application")
		app.Close()
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.ErrorLog(ctx, err, "Server stopped with error")
		os.Exit(1)
	}
	logger.InfoLog(ctx, "Server stopped")
}
