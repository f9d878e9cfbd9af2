// Package metadata fetches bibliographic data for an ISBN from Open Library.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://openlibrary.org"

// ErrNotFound means Open Library has no record for the ISBN.
var ErrNotFound = errors.New("isbn not found")

// BookInfo holds the fields used to prefill a new book. Any of them may be
// empty.
type BookInfo struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
}

// Lookuper is what the catalog needs from a metadata source.
type Lookuper interface {
	Lookup(ctx context.Context, isbn string) (*BookInfo, error)
}

// Client calls the Open Library books API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
}

// NormalizeISBN drops spaces and hyphens.
func NormalizeISBN(isbn string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn))
}

type olRecord struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Notes    json.RawMessage `json:"notes"`
	Excerpts []struct {
		Text string `json:"text"`
	} `json:"excerpts"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
}

func (c *Client) Lookup(ctx context.Context, isbn string) (*BookInfo, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrNotFound
	}

	q := url.Values{}
	q.Set("bibkeys", "ISBN:"+isbn)
	q.Set("format", "json")
	q.Set("jscmd", "data")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/books?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open library: unexpected status %s", resp.Status)
	}

	var body map[string]olRecord
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("open library: decode: %w", err)
	}
	rec, ok := body["ISBN:"+isbn]
	if !ok {
		return nil, ErrNotFound
	}

	info := &BookInfo{ISBN: isbn, Title: rec.Title}
	if len(rec.Authors) > 0 {
		info.Author = rec.Authors[0].Name
	}
	info.Description = notesText(rec.Notes)
	if info.Description == "" && len(rec.Excerpts) > 0 {
		info.Description = rec.Excerpts[0].Text
	}
	info.CoverURL = rec.Cover.Large
	if info.CoverURL == "" {
		info.CoverURL = rec.Cover.Medium
	}
	return info, nil
}

// notesText accepts both shapes Open Library uses: a bare string or
// {"type": ..., "value": ...}.
func notesText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return typed.Value
	}
	return ""
}
