package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/canopyview/internal/pkg/metrics"
)

// previewTimeout bounds endpoints that make no outbound calls.
const previewTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	if deps.RateLimit > 0 {
		app.Use(limiter.New(rateLimitConfig(deps)))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Street View AI. Transform is bounded by the imagery and generation
	// timeouts and the server write timeout, not by a route timeout.
	sv := app.Group("/v1/streetview-ai")
	sv.Post("/transform", TransformHandler(deps))
	sv.Post("/prompt", timeout.NewWithContext(PromptHandler(deps), previewTimeout))
	sv.Post("/visible-trees", timeout.NewWithContext(VisibleTreesHandler(deps), previewTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket relay of transform events
	app.Use("/ws", func(c *fiber.Ctx) error {
		if deps.NATS == nil {
			return errUnavailable(c, "event relay requires NATS")
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if deps.NATS != nil {
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}

// rateLimitConfig limits requests per IP per minute. Probes and metrics are
// exempt. Counters live in Valkey when configured, otherwise in memory.
func rateLimitConfig(deps *Dependencies) limiter.Config {
	cfg := limiter.Config{
		Max:        deps.RateLimit,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/v1/health", "/v1/ready", "/metrics":
				return true
			}
			return false
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errTooManyRequests(c, "too many requests, please try again later")
		},
	}
	if deps.Storage != nil {
		cfg.Storage = deps.Storage
	}
	return cfg
}
