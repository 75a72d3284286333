// Package gemini adapts the Gemini API to ports.ImageGenerator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/samirrijal/canopyview/internal/core/ports"
	"github.com/samirrijal/canopyview/internal/pkg/logging"
)

// DefaultModel supports image output alongside text.
const DefaultModel = "gemini-2.0-flash-exp-image-generation"

// Options configures a Generator.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string       // empty uses the SDK default endpoint
	HTTPClient *http.Client // optional
}

// Generator implements ports.ImageGenerator with a shared genai client.
type Generator struct {
	client *genai.Client
	model  string
}

// New creates the Gemini client once; it is safe for concurrent use.
func New(ctx context.Context, opts Options) (*Generator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is missing")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(opts.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Generator{client: client, model: opts.Model}, nil
}

// Generate sends the prompt and reference image in a single request and
// returns every inline image in the response, in order.
func (g *Generator) Generate(ctx context.Context, prompt string, reference []byte, referenceMIME string) ([]ports.GeneratedImage, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(reference, referenceMIME),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	images := ExtractImages(resp)
	logging.FromContext(ctx).Debug("gemini response", "model", g.model, "images", len(images))
	return images, nil
}

// ExtractImages collects inline image parts from all candidates.
func ExtractImages(resp *genai.GenerateContentResponse) []ports.GeneratedImage {
	if resp == nil {
		return nil
	}
	var images []ports.GeneratedImage
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if mt := part.InlineData.MIMEType; mt != "" && !strings.HasPrefix(mt, "image/") {
				continue
			}
			images = append(images, ports.GeneratedImage{
				Data:     part.InlineData.Data,
				MIMEType: part.InlineData.MIMEType,
			})
		}
	}
	return images
}
