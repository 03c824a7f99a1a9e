package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "healthmon", r.Header.Get("User-Agent"))
		user, pass, ok := r.BasicAuth()
		if ok {
			assert.Equal(t, "etl", user)
			assert.Equal(t, "secret", pass)
		}
		w.Write([]byte(`{"status": "ok", "count": 3, "items": [true, null]}`))
	}))
	defer server.Close()

	doc, err := NewHTTP(Options{}).FetchJSON(context.Background(), server.URL, time.Second)
	require.NoError(t, err)

	obj, ok := doc.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", obj["status"])
	assert.Equal(t, float64(3), obj["count"])
	assert.Equal(t, []any{true, nil}, obj["items"])
}

func TestFetchJSONFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "not here", http.StatusNotFound)
		case "/garbage":
			w.Write([]byte("<html>"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("{}"))
		}
	}))
	defer server.Close()

	f := NewHTTP(Options{})
	ctx := context.Background()

	_, err := f.FetchJSON(ctx, server.URL+"/missing", time.Second)
	assert.True(t, IsKind(err, HTTPStatus), "got %v", err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusNotFound, failure.StatusCode)
	assert.Equal(t, "not here", failure.Detail)

	_, err = f.FetchJSON(ctx, server.URL+"/garbage", time.Second)
	assert.True(t, IsKind(err, Malformed), "got %v", err)

	_, err = f.FetchJSON(ctx, server.URL+"/slow", 20*time.Millisecond)
	assert.True(t, IsKind(err, Network), "got %v", err)

	_, err = f.FetchJSON(ctx, "http://127.0.0.1:1/", time.Second)
	assert.True(t, IsKind(err, Network), "got %v", err)
}

func TestFetchReturnsAnyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down"))
	}))
	defer server.Close()

	resp, err := NewHTTP(Options{Headers: map[string]string{"X-Probe": "1"}}).Fetch(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "down", string(resp.Body))
	assert.Positive(t, resp.Elapsed)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com/status", NormalizeURL("example.com/status"))
	assert.Equal(t, "https://example.com", NormalizeURL("https://example.com"))
	assert.Equal(t, "", NormalizeURL("  "))
}
