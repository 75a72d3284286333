package ports

import (
	"context"

	"github.com/samirrijal/canopyview/internal/core/domain"
)

// ImageryProvider fetches a street-level photograph for a viewpoint.
type ImageryProvider interface {
	// FetchImage returns the raw image bytes for the frame. A non-success
	// response from the provider is returned as *domain.UpstreamFetchError.
	FetchImage(ctx context.Context, vp domain.Viewpoint) ([]byte, error)
}

// GeneratedImage is one image returned by the generative model.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

// ImageGenerator transforms a reference image according to a text prompt.
type ImageGenerator interface {
	// Generate returns zero or more images. An empty slice is not an error here.
	Generate(ctx context.Context, prompt string, reference []byte, referenceMIME string) ([]GeneratedImage, error)
}

// EventPublisher publishes transform events to a message broker.
type EventPublisher interface {
	PublishTransformEvent(ctx context.Context, event *domain.TransformEvent) error
}
