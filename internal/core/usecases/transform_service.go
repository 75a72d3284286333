package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/core/ports"
	"github.com/samirrijal/canopyview/internal/pkg/imagecodec"
	"github.com/samirrijal/canopyview/internal/pkg/logging"
	"github.com/samirrijal/canopyview/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/canopyview/internal/core/usecases")

// TransformService composites planted trees onto a Street View frame.
// A nil imagery provider or generator means its credential is not configured.
type TransformService struct {
	imagery           ports.ImageryProvider
	generator         ports.ImageGenerator
	events            ports.EventPublisher
	generationTimeout time.Duration
}

// NewTransformService creates a new TransformService. events may be nil.
// generationTimeout <= 0 leaves the generation call bounded only by ctx.
func NewTransformService(
	imagery ports.ImageryProvider,
	generator ports.ImageGenerator,
	events ports.EventPublisher,
	generationTimeout time.Duration,
) *TransformService {
	return &TransformService{
		imagery:           imagery,
		generator:         generator,
		events:            events,
		generationTimeout: generationTimeout,
	}
}

// CredentialStatus reports which upstream credentials are configured.
func (s *TransformService) CredentialStatus() (imagery, generation bool) {
	return s.imagery != nil, s.generator != nil
}

// Transform fetches the frame for vp and adds trees to it. With no trees the
// transformed image is the original, and the generator is not called.
func (s *TransformService) Transform(ctx context.Context, vp domain.Viewpoint, trees []domain.TreePlacement) (*domain.TransformationResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "TransformService.Transform", trace.WithAttributes(
		attribute.Float64("viewpoint.lat", vp.Lat),
		attribute.Float64("viewpoint.lng", vp.Lng),
		attribute.Float64("viewpoint.heading", vp.Heading),
		attribute.Int("trees", len(trees)),
	))
	defer span.End()

	result, err := s.transform(ctx, vp, trees)
	outcome := domain.Outcome(err)
	metrics.TransformsTotal.WithLabelValues(string(outcome)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.FromContext(ctx).Error("street view transform failed",
			"outcome", outcome, "trees", len(trees), "error", err)
	} else {
		metrics.TreesPlaced.Add(float64(result.TreesAdded))
	}

	s.publish(ctx, vp, len(trees), outcome, err, time.Since(start))
	return result, err
}

func (s *TransformService) transform(ctx context.Context, vp domain.Viewpoint, trees []domain.TreePlacement) (*domain.TransformationResult, error) {
	if s.generator == nil {
		return nil, domain.MissingCredentialError("Gemini")
	}
	if s.imagery == nil {
		return nil, domain.MissingCredentialError("Google Maps")
	}

	raw, err := s.fetch(ctx, vp)
	if err != nil {
		return nil, err
	}

	encoded, err := imagecodec.ReencodeJPEG(ctx, raw)
	if err != nil {
		return nil, &domain.UpstreamFetchError{Err: fmt.Errorf("unreadable street view image: %w", err)}
	}
	original := imagecodec.Base64(encoded)

	transformed := original
	if len(trees) > 0 {
		transformed, err = s.generate(ctx, vp, trees, encoded)
		if err != nil {
			return nil, err
		}
	}

	return &domain.TransformationResult{
		OriginalImage:    original,
		TransformedImage: transformed,
		Location:         vp.Location(),
		TreesAdded:       len(trees),
	}, nil
}

func (s *TransformService) fetch(ctx context.Context, vp domain.Viewpoint) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "imagery.Fetch")
	defer span.End()

	start := time.Now()
	raw, err := s.imagery.FetchImage(ctx, vp)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ImageryFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		var fetchErr *domain.UpstreamFetchError
		if !errors.As(err, &fetchErr) {
			err = &domain.UpstreamFetchError{Err: err}
		}
		return nil, err
	}
	return raw, nil
}

func (s *TransformService) generate(ctx context.Context, vp domain.Viewpoint, trees []domain.TreePlacement, reference []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.Generate", trace.WithAttributes(attribute.Int("trees", len(trees))))
	defer span.End()

	if s.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generationTimeout)
		defer cancel()
	}

	_, prompt := PromptFor(vp.Heading, trees)
	logging.FromContext(ctx).Debug("generating composited frame", "trees", len(trees), "prompt_len", len(prompt))

	start := time.Now()
	images, err := s.generator.Generate(ctx, prompt, reference, imagecodec.JPEGMIMEType)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case len(images) == 0:
		result = "empty"
	}
	metrics.GenerationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		return "", &domain.GenerationError{Err: err}
	}
	if len(images) == 0 {
		return "", &domain.GenerationError{Err: domain.ErrNoImageGenerated}
	}
	return imagecodec.Base64(images[0].Data), nil
}

func (s *TransformService) publish(ctx context.Context, vp domain.Viewpoint, trees int, outcome domain.TransformOutcome, err error, took time.Duration) {
	if s.events == nil {
		return
	}

	event := &domain.TransformEvent{
		ID:          uuid.NewString(),
		Outcome:     outcome,
		Location:    vp.Location(),
		TreesAdded:  trees,
		Transformed: err == nil && trees > 0,
		DurationMS:  took.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
	if err != nil {
		event.TreesAdded = 0
		event.Error = err.Error()
	}

	if pubErr := s.events.PublishTransformEvent(ctx, event); pubErr != nil {
		logging.FromContext(ctx).Warn("publish transform event", "event_id", event.ID, "error", pubErr)
	}
}
