package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/canopyview/internal/adapters/valkey"
	"github.com/samirrijal/canopyview/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Transform  *usecases.TransformService
	Visibility *usecases.VisibilityResolver
	NATS       *nats.Conn      // optional; enables /ws
	Storage    *valkey.Storage // optional; shared limiter counters
	RateLimit  int             // requests per minute per IP, 0 disables limiting
}
