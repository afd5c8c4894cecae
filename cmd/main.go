package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"notifyd/internal/auth"
	"notifyd/internal/config"
	"notifyd/internal/db"
	"notifyd/internal/directory"
	"notifyd/internal/handlers"
	"notifyd/internal/identity"
	"notifyd/internal/migrations"
	"notifyd/internal/notify"
	"notifyd/internal/queue"
	"notifyd/internal/routes"
	"notifyd/internal/worker"
)

// runMigration dispatches the migration subcommands so rollbacks and version
// checks don't need a full server start.
func runMigration(command string) error {
	switch command {
	case "migrate:up":
		return migrations.Up(migrations.Files)
	case "migrate:down":
		return migrations.Down(migrations.Files)
	case "migrate:version":
		return migrations.Version(migrations.Files)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func main() {
	config.LoadEnv()

	if len(os.Args) > 1 {
		if err := runMigration(os.Args[1]); err != nil {
			slog.Error("Command failed", "command", os.Args[1], "error", err)
			os.Exit(1)
		}
		return
	}

	db.InitDB()

	if err := migrations.Up(migrations.Files); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	auth.InitSecurity()

	notify.FailOpen = config.PrefFailOpen()

	if err := queue.InitQueue(); err != nil {
		slog.Error("Failed to initialize task queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	// Push is optional; without Firebase credentials the push channel just
	// fails its work items.
	if err := config.InitFirebase(); err != nil {
		slog.Warn("Push transport unavailable", "error", err)
	}

	handlers.Resolver = identity.NewResolver(directory.NewClient())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.GetEnvBool("RUN_WORKER", true) {
		w := worker.NewWorker()
		go func() {
			if err := w.Start(ctx); err != nil {
				slog.Error("Worker failed", "error", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api := e.Group("/api")
	routes.SetupRoutes(api)

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server")
		if err := e.Shutdown(context.Background()); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	port := config.GetEnv("PORT", "8080")
	if err := e.Start(":" + port); err != nil {
		slog.Info("Server stopped", "error", err)
	}
}
