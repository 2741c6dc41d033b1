package screenshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

type ClientOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Timeout: defaultTimeout,
	}
}

type ClientOption func(*ClientOptions)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *ClientOptions) {
		o.HTTPClient = client
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// Client talks to the external headless-browser capture service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	options := DefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	return &Client{baseURL: baseURL, http: httpClient}
}

type captureRequest struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type captureResponse struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	Error     string `json:"error,omitempty"`
}

// CaptureError is returned when the capture service rejects a request.
type CaptureError struct {
	StatusCode int
	Message    string
}

func (e *CaptureError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("screenshot service: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("screenshot service: status %d", e.StatusCode)
}

// Capture renders the page at url in a width x height viewport and returns
// the media type and base64-encoded image data.
func (c *Client) Capture(ctx context.Context, url string, width, height int) (string, string, error) {
	body, err := json.Marshal(captureRequest{URL: url, Width: width, Height: height})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/capture", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("calling screenshot service: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", "", fmt.Errorf("reading screenshot response: %w", err)
	}

	var captured captureResponse
	if err := json.Unmarshal(payload, &captured); err != nil && resp.StatusCode == http.StatusOK {
		return "", "", fmt.Errorf("decoding screenshot response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", "", &CaptureError{StatusCode: resp.StatusCode, Message: captured.Error}
	}
	if captured.Data == "" {
		return "", "", &CaptureError{StatusCode: resp.StatusCode, Message: "empty image payload"}
	}

	mediaType := captured.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return mediaType, captured.Data, nil
}
