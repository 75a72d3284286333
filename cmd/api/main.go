package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/canopyview/internal/adapters/gemini"
	"github.com/samirrijal/canopyview/internal/adapters/http"
	natsadapter "github.com/samirrijal/canopyview/internal/adapters/nats"
	"github.com/samirrijal/canopyview/internal/adapters/streetview"
	"github.com/samirrijal/canopyview/internal/adapters/valkey"
	"github.com/samirrijal/canopyview/internal/core/ports"
	"github.com/samirrijal/canopyview/internal/core/usecases"
	"github.com/samirrijal/canopyview/internal/pkg/config"
	"github.com/samirrijal/canopyview/internal/pkg/logging"
	"github.com/samirrijal/canopyview/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("canopyview-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Providers. A missing key leaves the provider nil and is reported per request.
	var imagery ports.ImageryProvider
	if cfg.Imagery.APIKey != "" {
		sv, err := streetview.New(streetview.Options{
			APIKey:        cfg.Imagery.APIKey,
			BaseURL:       cfg.Imagery.BaseURL,
			Timeout:       cfg.Imagery.Timeout,
			RatePerSecond: cfg.Imagery.RatePerSecond,
			Burst:         cfg.Imagery.Burst,
		})
		if err != nil {
			log.Fatalf("street view client: %v", err)
		}
		imagery = sv
	} else {
		slog.Warn("street view API key not configured; transforms will be rejected")
	}

	var generator ports.ImageGenerator
	if cfg.Generation.APIKey != "" {
		gen, err := gemini.New(ctx, gemini.Options{
			APIKey:  cfg.Generation.APIKey,
			Model:   cfg.Generation.Model,
			BaseURL: cfg.Generation.BaseURL,
		})
		if err != nil {
			log.Fatalf("gemini client: %v", err)
		}
		generator = gen
	} else {
		slog.Warn("gemini API key not configured; transforms will be rejected")
	}

	// NATS
	var events ports.EventPublisher
	var pub *natsadapter.Publisher
	if cfg.NATS.Enabled {
		pub, err = natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.JetStream)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	// Valkey limiter storage
	var storage *valkey.Storage
	if cfg.Valkey.Enabled {
		storage, err = valkey.New(cfg.Valkey.Addr, "")
		if err != nil {
			slog.Warn("valkey unavailable, using in-memory rate limiting", "error", err)
			storage = nil
		} else {
			defer storage.Close()
		}
	}

	// Use cases
	transformSvc := usecases.NewTransformService(imagery, generator, events, cfg.Generation.Timeout)
	visibility := usecases.NewVisibilityResolver(cfg.Visibility.MaxRelativeBearing, cfg.Visibility.MaxDistance)

	deps := &http.Dependencies{
		Transform:  transformSvc,
		Visibility: visibility,
		Storage:    storage,
		RateLimit:  cfg.Server.RateLimit,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		AppName:      "Canopyview API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "model", cfg.Generation.Model)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Transforms can take a while; give them the full write timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.WriteTimeout)*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
