// Package streetview fetches frames from the Google Street View Static API.
package streetview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/pkg/logging"
)

const streetViewPath = "/maps/api/streetview"

// Frame size requested from the Static API.
const (
	FrameWidth  = 800
	FrameHeight = 600
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables throttling
	Burst         int
	HTTPClient    *http.Client // optional; Timeout is applied when nil
}

// Client implements ports.ImageryProvider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Street View client. It returns an error when no API key is set.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("street view API key is missing")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://maps.googleapis.com"
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: client,
		limiter:    limiter,
	}, nil
}

// URL builds the Static API request URL for a viewpoint.
func (c *Client) URL(vp domain.Viewpoint) string {
	q := url.Values{}
	q.Set("size", fmt.Sprintf("%dx%d", FrameWidth, FrameHeight))
	q.Set("location", formatFloat(vp.Lat)+","+formatFloat(vp.Lng))
	q.Set("heading", formatFloat(vp.Heading))
	q.Set("pitch", formatFloat(vp.Pitch))
	q.Set("fov", formatFloat(vp.FOV))
	q.Set("key", c.apiKey)
	return c.baseURL + streetViewPath + "?" + q.Encode()
}

// FetchImage downloads the frame for vp. Any non-2xx status is fatal.
func (c *Client) FetchImage(ctx context.Context, vp domain.Viewpoint) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.UpstreamFetchError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(vp), nil)
	if err != nil {
		return nil, &domain.UpstreamFetchError{Err: fmt.Errorf("build request: %w", err)}
	}

	logging.FromContext(ctx).Debug("fetching street view frame",
		"lat", vp.Lat, "lng", vp.Lng, "heading", vp.Heading, "pitch", vp.Pitch, "fov", vp.FOV)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamFetchError{Err: redact(err, c.apiKey)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		logging.FromContext(ctx).Warn("street view API error", "status", resp.StatusCode, "body", msg)
		return nil, &domain.UpstreamFetchError{StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamFetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// redact strips the API key from transport errors, which embed the request URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
