// Package confluence fetches pages from the Confluence Cloud REST API and
// extracts plain text from their storage-format HTML.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
)

const (
	// DefaultPageSize is the page batch size for space listing.
	DefaultPageSize = 50

	clientPoolSize = 4
)

// Page is a Confluence page with its storage-format body.
type Page struct {
	ID       string
	Title    string
	SpaceKey string
	Version  int
	BodyHTML string
	URL      string
	Modified time.Time
}

// Config holds the Confluence connection settings.
type Config struct {
	BaseURL  string // e.g. https://company.atlassian.net/wiki
	Username string
	APIToken string
	SpaceKey string
	Timeout  time.Duration
	PageSize int
}

// Client talks to the Confluence REST API with basic auth.
type Client struct {
	http    *http.Client
	baseURL string
	user    string
	token   string
	space   string
	pageSz  int
}

// NewClient creates a Confluence API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, askerrors.ConfigError("confluence base URL is not set", nil).
			WithSuggestion("set confluence.base_url or CONFLUENCE_URL")
	}
	if cfg.Username == "" || cfg.APIToken == "" {
		return nil, askerrors.ConfigError("confluence credentials are not set", nil).
			WithSuggestion("set CONFLUENCE_USERNAME and CONFLUENCE_API_TOKEN")
	}
	if cfg.SpaceKey == "" {
		return nil, askerrors.ConfigError("confluence space key is not set", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	transport := &http.Transport{
		MaxIdleConns:        clientPoolSize,
		MaxIdleConnsPerHost: clientPoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		user:    cfg.Username,
		token:   cfg.APIToken,
		space:   cfg.SpaceKey,
		pageSz:  cfg.PageSize,
	}, nil
}

// contentResponse is the REST /rest/api/content payload subset we use.
type contentResponse struct {
	Results []contentResult `json:"results"`
	Size    int             `json:"size"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

type contentResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// ListPages fetches every current page in the configured space, paging
// through the API. Transient failures retry with backoff.
func (c *Client) ListPages(ctx context.Context) ([]*Page, error) {
	var pages []*Page
	start := 0

	for {
		var batch contentResponse
		err := askerrors.Retry(ctx, askerrors.DefaultRetryConfig(), func() error {
			return c.getJSON(ctx, c.contentURL(start), &batch)
		})
		if err != nil {
			return nil, err
		}

		for _, r := range batch.Results {
			pages = append(pages, toPage(c.baseURL, r))
		}

		slog.Debug("confluence_page_batch",
			slog.String("space", c.space),
			slog.Int("fetched", len(pages)))

		if batch.Size < c.pageSz {
			return pages, nil
		}
		start += c.pageSz
	}
}

// GetPage fetches a single page by ID.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	u := fmt.Sprintf("%s/rest/api/content/%s?expand=body.storage,version,space", c.baseURL, url.PathEscape(pageID))

	var result contentResult
	err := askerrors.Retry(ctx, askerrors.DefaultRetryConfig(), func() error {
		return c.getJSON(ctx, u, &result)
	})
	if err != nil {
		return nil, err
	}

	return toPage(c.baseURL, result), nil
}

func (c *Client) contentURL(start int) string {
	q := url.Values{}
	q.Set("spaceKey", c.space)
	q.Set("type", "page")
	q.Set("status", "current")
	q.Set("expand", "body.storage,version,space")
	q.Set("limit", strconv.Itoa(c.pageSz))
	q.Set("start", strconv.Itoa(start))
	return c.baseURL + "/rest/api/content?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return askerrors.ErrUpstreamTimeout
		}
		return askerrors.New(askerrors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("confluence request failed: %v", err), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Auth failures never recover on retry; fail fast with guidance
		return askerrors.ConfigError(
			fmt.Sprintf("confluence rejected credentials (%d)", resp.StatusCode), nil).
			WithSuggestion("check CONFLUENCE_USERNAME and CONFLUENCE_API_TOKEN")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return askerrors.New(askerrors.ErrCodeConfluenceAPI,
			fmt.Sprintf("confluence returned %d: %s", resp.StatusCode, string(data)), nil).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return askerrors.New(askerrors.ErrCodeInvalidInput,
			fmt.Sprintf("confluence returned %d: %s", resp.StatusCode, string(data)), nil).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode confluence response: %w", err)
	}
	return nil
}

func toPage(baseURL string, r contentResult) *Page {
	modified, _ := time.Parse(time.RFC3339, r.Version.When)
	return &Page{
		ID:       r.ID,
		Title:    r.Title,
		SpaceKey: r.Space.Key,
		Version:  r.Version.Number,
		BodyHTML: r.Body.Storage.Value,
		URL:      baseURL + r.Links.WebUI,
		Modified: modified,
	}
}
