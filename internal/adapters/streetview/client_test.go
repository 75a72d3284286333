package streetview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/canopyview/internal/core/domain"
)

var vp = domain.Viewpoint{Lat: 37.0, Lng: -122.0, Heading: 45.5, Pitch: -10, FOV: 90}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestClient_URL(t *testing.T) {
	c, err := New(Options{APIKey: "k", BaseURL: "https://maps.example.com/"})
	require.NoError(t, err)

	u, err := url.Parse(c.URL(vp))
	require.NoError(t, err)

	assert.Equal(t, "maps.example.com", u.Host)
	assert.Equal(t, "/maps/api/streetview", u.Path)
	q := u.Query()
	assert.Equal(t, "800x600", q.Get("size"))
	assert.Equal(t, "37,-122", q.Get("location"))
	assert.Equal(t, "45.5", q.Get("heading"))
	assert.Equal(t, "-10", q.Get("pitch"))
	assert.Equal(t, "90", q.Get("fov"))
	assert.Equal(t, "k", q.Get("key"))
}

func TestClient_FetchImage_Success(t *testing.T) {
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer ts.Close()

	c, err := New(Options{APIKey: "secret", BaseURL: ts.URL})
	require.NoError(t, err)

	data, err := c.FetchImage(context.Background(), vp)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "secret", gotQuery.Get("key"))
	assert.Equal(t, "800x600", gotQuery.Get("size"))
}

func TestClient_FetchImage_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("The provided API key is invalid."))
	}))
	defer ts.Close()

	c, err := New(Options{APIKey: "bad", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = c.FetchImage(context.Background(), vp)
	var fetchErr *domain.UpstreamFetchError
	require.True(t, errors.As(err, &fetchErr), "expected UpstreamFetchError, got %v", err)
	assert.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "API key is invalid")
}

func TestClient_FetchImage_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c, err := New(Options{APIKey: "sekret-key", BaseURL: ts.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.FetchImage(context.Background(), vp)
	var fetchErr *domain.UpstreamFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
	assert.False(t, strings.Contains(err.Error(), "sekret-key"), "API key leaked into error: %v", err)
}

func TestClient_FetchImage_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	c, err := New(Options{APIKey: "k", BaseURL: ts.URL, RatePerSecond: 1, Burst: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchImage(ctx, vp)
	assert.Error(t, err)
}
