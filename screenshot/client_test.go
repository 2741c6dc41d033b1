package screenshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/weavely/weave/screenshot"
)

func TestClient_Capture(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/capture" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.URL != "https://example.com" || req.Width != 1280 || req.Height != 800 {
			t.Errorf("unexpected payload: %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]string{
			"media_type": "image/png",
			"data":       "aGVsbG8=",
		})
	}))
	defer server.Close()

	client := screenshot.NewClient(server.URL)
	mediaType, data, err := client.Capture(context.Background(), "https://example.com", 1280, 800)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if mediaType != "image/png" {
		t.Errorf("mediaType = %s", mediaType)
	}
	if data != "aGVsbG8=" {
		t.Errorf("data = %s", data)
	}
}

func TestClient_ServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "browser pool exhausted"})
	}))
	defer server.Close()

	client := screenshot.NewClient(server.URL)
	_, _, err := client.Capture(context.Background(), "https://example.com", 800, 600)

	var captureErr *screenshot.CaptureError
	if !errors.As(err, &captureErr) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
	if captureErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", captureErr.StatusCode)
	}
}

func TestClient_EmptyPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	client := screenshot.NewClient(server.URL)
	if _, _, err := client.Capture(context.Background(), "https://example.com", 800, 600); err == nil {
		t.Fatal("expected error for empty image payload")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := screenshot.NewClient(server.URL, screenshot.WithTimeout(5*time.Second))
	if _, _, err := client.Capture(ctx, "https://example.com", 800, 600); err == nil {
		t.Fatal("expected error after context cancellation")
	}
}
