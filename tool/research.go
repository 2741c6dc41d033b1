package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"

	"github.com/weavely/weave/action"
)

const maxFetchBody = 4 << 20

type fetchPageInput struct {
	URL string `json:"url" jsonschema:"required" jsonschema_description:"Absolute http or https URL of the page to fetch"`
}

type queryStoreInput struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"SQL SELECT statement to run against the session store"`
}

type captureScreenshotInput struct {
	URL    string `json:"url" jsonschema:"required" jsonschema_description:"URL of the published page to capture"`
	Width  int    `json:"width" jsonschema_description:"Viewport width in pixels, defaults to 1280"`
	Height int    `json:"height" jsonschema_description:"Viewport height in pixels, defaults to 800"`
}

// ResearchTools returns the tool set for agents that gather reference
// material from the web and the session store.
func ResearchTools() []*Definition {
	return []*Definition{
		NewTool("fetch_page",
			"Fetch a web page and return its readable content as markdown.",
			func(ctx context.Context, exec *Context, input fetchPageInput) (action.Action, error) {
				content, err := fetchReadable(ctx, exec.httpClient(), input.URL)
				if err != nil {
					return nil, err
				}
				return action.Note{Text: content}, nil
			},
			WithReadonly(true)),
		NewTool("query_store",
			"Run a read-only SQL query against the session store and return the rows as JSON.",
			func(ctx context.Context, exec *Context, input queryStoreInput) (action.Action, error) {
				if exec.Store == nil {
					return nil, fmt.Errorf("no session store attached")
				}
				stmt := strings.TrimSpace(input.Query)
				if !strings.HasPrefix(strings.ToLower(stmt), "select") {
					return nil, fmt.Errorf("only SELECT statements are allowed")
				}
				rows, err := exec.Store.Query(ctx, stmt)
				if err != nil {
					return nil, fmt.Errorf("querying store: %w", err)
				}
				data, err := json.Marshal(rows)
				if err != nil {
					return nil, fmt.Errorf("encoding rows: %w", err)
				}
				return action.Note{Text: string(data)}, nil
			},
			WithReadonly(true)),
	}
}

// ScreenshotTool returns the capture tool. It is split out because only
// visually oriented agents get it.
func ScreenshotTool() *Definition {
	return NewTool("capture_screenshot",
		"Capture a screenshot of the published page for visual inspection.",
		func(ctx context.Context, exec *Context, input captureScreenshotInput) (action.Action, error) {
			if exec.Screenshot == nil {
				return nil, fmt.Errorf("no screenshot service attached")
			}
			width, height := input.Width, input.Height
			if width <= 0 {
				width = 1280
			}
			if height <= 0 {
				height = 800
			}
			mediaType, data, err := exec.Screenshot.Capture(ctx, input.URL, width, height)
			if err != nil {
				return nil, fmt.Errorf("capturing %s: %w", input.URL, err)
			}
			return action.CaptureScreenshot{
				URL:       input.URL,
				Width:     width,
				Height:    height,
				MediaType: mediaType,
				Data:      data,
			}, nil
		},
		WithReadonly(true))
}

func fetchReadable(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxFetchBody), pageURL)
	if err != nil {
		return "", fmt.Errorf("extracting content from %s: %w", rawURL, err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(article.Content)
	if err != nil {
		return "", fmt.Errorf("converting %s to markdown: %w", rawURL, err)
	}

	if article.Title != "" {
		markdown = "# " + article.Title + "\n\n" + markdown
	}
	return markdown, nil
}
