package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/interfaces/api/handlers"
	"github.com/dekalouis/v0-drive/interfaces/api/middleware"
	"github.com/dekalouis/v0-drive/interfaces/api/routes"
	"github.com/dekalouis/v0-drive/pkg/di"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

func main() {
	if err := logger.Init("logs", true); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	logger.Startup("logger_init", "Logger initialized - logs will be written to ./logs/", nil)

	container := di.NewContainer()
	if err := container.Initialize(); err != nil {
		logger.StartupError("container_init_failed", "Failed to initialize container", err, nil)
		os.Exit(1)
	}

	if err := container.StartWorkers(); err != nil {
		logger.StartupError("workers_start_failed", "Failed to start workers", err, nil)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		AppName:      container.GetConfig().App.Name,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CorsMiddleware())

	h := handlers.NewHandlers(
		container.GetHandlerServices(),
		container.GoogleDrive,
		container.Queue,
		container.DB,
		container.RedisClient,
	)
	routes.SetupRoutes(app, h, container.GetConfig())

	setupGracefulShutdown(app, container)

	port := container.GetConfig().App.Port
	logger.Startup("server_starting", "Server starting", map[string]interface{}{
		"port":        port,
		"environment": container.GetConfig().App.Env,
		"health":      fmt.Sprintf("http://localhost:%s/health", port),
		"api":         fmt.Sprintf("http://localhost:%s/api/v1", port),
	})

	if err := app.Listen(":" + port); err != nil {
		logger.StartupError("server_failed", "Server stopped unexpectedly", err, nil)
		os.Exit(1)
	}
}

func setupGracefulShutdown(app *fiber.App, container *di.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		logger.Startup("shutdown_signal", "Shutdown signal received", map[string]interface{}{
			"signal": sig.String(),
		})

		if err := app.Shutdown(); err != nil {
			logger.StartupError("shutdown_http", "HTTP shutdown failed", err, nil)
		}
		container.Shutdown()
		logger.Default().Close()
		os.Exit(0)
	}()
}
