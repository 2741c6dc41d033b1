package tool

import (
	"context"
	"net/http"

	"github.com/weavely/weave/document"
)

// DataStore is the narrow view of the relational store collaborator exposed
// to tools. Tools must treat it as read-only unless they are explicitly
// write tools.
type DataStore interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// ScreenshotCapturer captures a rendering of the given URL at the given
// viewport size and returns the encoded image.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, url string, width, height int) (mediaType string, data string, err error)
}

// Context is the shared execution context passed to every tool handler.
type Context struct {
	Store      DataStore
	Document   *document.Store
	Screenshot ScreenshotCapturer
	HTTPClient *http.Client
}

func (c *Context) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
