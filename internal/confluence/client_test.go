package confluence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:  baseURL,
		Username: "bot@example.com",
		APIToken: "token",
		SpaceKey: "ENG",
		Timeout:  2 * time.Second,
		PageSize: 2,
	}
}

func pageJSON(id, title string) map[string]any {
	return map[string]any{
		"id":    id,
		"title": title,
		"space": map[string]any{"key": "ENG"},
		"version": map[string]any{
			"number": 3,
			"when":   "2026-08-01T10:00:00Z",
		},
		"body": map[string]any{
			"storage": map[string]any{"value": "<p>" + title + " body</p>"},
		},
		"_links": map[string]any{"webui": "/spaces/ENG/pages/" + id},
	}
}

func TestClient_ListPagesPaginates(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		user, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "token", token)
		assert.Equal(t, "ENG", r.URL.Query().Get("spaceKey"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		var results []map[string]any
		switch start {
		case 0:
			results = []map[string]any{pageJSON("1", "One"), pageJSON("2", "Two")}
		case 2:
			results = []map[string]any{pageJSON("3", "Three")}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": results,
			"size":    len(results),
		})
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	pages, err := c.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 2, requests)

	assert.Equal(t, "1", pages[0].ID)
	assert.Equal(t, "One", pages[0].Title)
	assert.Equal(t, "ENG", pages[0].SpaceKey)
	assert.Equal(t, 3, pages[0].Version)
	assert.Equal(t, "<p>One body</p>", pages[0].BodyHTML)
	assert.Equal(t, srv.URL+"/spaces/ENG/pages/1", pages[0].URL)
	assert.Equal(t, 2026, pages[0].Modified.Year())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{pageJSON("1", "One")},
			"size":    1,
		})
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	pages, err := c.ListPages(context.Background())
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, 2, requests)
}

func TestClient_AuthFailureFailsFast(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.ListPages(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, requests, "auth errors must not retry")
	assert.False(t, askerrors.IsRetryable(err))
}

func TestClient_GetPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/content/42", r.URL.Path)
		_ = json.NewEncoder(w).Encode(pageJSON("42", "Answer"))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	page, err := c.GetPage(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", page.ID)
	assert.Equal(t, "Answer", page.Title)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base URL", func(c *Config) { c.BaseURL = "" }},
		{"missing username", func(c *Config) { c.Username = "" }},
		{"missing token", func(c *Config) { c.APIToken = "" }},
		{"missing space", func(c *Config) { c.SpaceKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("https://wiki.example.com")
			tt.mutate(&cfg)
			_, err := NewClient(cfg)
			require.Error(t, err)
			assert.Equal(t, askerrors.CategoryConfig, askerrors.GetCategory(err))
		})
	}
}
