// Package googlebooks implements the Google Books volumes client: the
// second link in the ebook fallback chain.
package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/shelfwatch/ingestd/internal/config"
	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata"
	"github.com/shelfwatch/ingestd/internal/ratelimit"
	"github.com/shelfwatch/ingestd/internal/retry"
)

// SourceName is the display name used in events and quarantine reasons.
const SourceName = "Google Books"

const limiterKey = "googlebooks"

// Client queries the Google Books volumes:list endpoint.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	cfg     config.SourceConfig
	logger  *slog.Logger
}

// New creates a client bound to cfg's base URL, API key, timeout, and
// rate limit.
func New(cfg config.SourceConfig, logger *slog.Logger) *Client {
	window := cfg.RateLimitWindow.Seconds()
	rps := float64(cfg.RateLimit)
	if window > 0 {
		rps = float64(cfg.RateLimit) / window
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.SearchTimeout},
		limiter: ratelimit.New(rps, cfg.RateLimit),
		cfg:     cfg,
		logger:  logger,
	}
}

// Close releases the client's rate limiter goroutine.
func (c *Client) Close() { c.limiter.Stop() }

type volumesResponse struct {
	Items []Volume `json:"items"`
}

// Volume is a single Google Books search result.
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo holds the fields this client maps into PartialMetadata.
type VolumeInfo struct {
	Title               string             `json:"title"`
	Authors              []string           `json:"authors"`
	Publisher            string             `json:"publisher"`
	PublishedDate        string             `json:"publishedDate"`
	Description          string             `json:"description"`
	IndustryIdentifiers  []IndustryID       `json:"industryIdentifiers"`
	Categories           []string           `json:"categories"`
	Language             string             `json:"language"`
	ImageLinks           map[string]string  `json:"imageLinks"`
}

// IndustryID is an ISBN-10/13 entry in a volume's identifiers list.
type IndustryID struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// SearchByISBN searches by isbn: qualifier.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]Volume, error) {
	return c.search(ctx, "isbn:"+isbn)
}

// SearchByTitle searches by intitle:/inauthor: qualifiers.
func (c *Client) SearchByTitle(ctx context.Context, title, author string) ([]Volume, error) {
	q := "intitle:" + title
	if author != "" {
		q += "+inauthor:" + author
	}
	return c.search(ctx, q)
}

func (c *Client) search(ctx context.Context, query string) ([]Volume, error) {
	q := url.Values{"q": {query}, "maxResults": {"10"}}
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}

	opts := retry.Options{MaxAttempts: c.cfg.MaxRetries, BaseDelay: retry.DefaultOptions().BaseDelay, DefaultRetryAfter: retry.DefaultOptions().DefaultRetryAfter}

	var result volumesResponse
	err := retry.Do(ctx, opts, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return retry.Stop(err)
		}

		body, status, err := c.doGet(ctx, "/volumes", q)
		if err != nil {
			return retry.Retryable(err)
		}

		switch {
		case status == http.StatusOK:
			if err := json.Unmarshal(body, &result); err != nil {
				return retry.Stop(fmt.Errorf("google books: decode response: %w", err))
			}
			return nil
		case status == http.StatusForbidden:
			return retry.Stop(fmt.Errorf("google books: API key invalid or quota exceeded"))
		case status >= 500:
			return retry.Retryable(fmt.Errorf("google books: server error %d", status))
		default:
			return retry.Stop(fmt.Errorf("google books: unexpected status %d", status))
		}
	})
	if err != nil {
		return nil, apperrors.ExternalSourcef("%s: %v", SourceName, err)
	}

	return result.Items, nil
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values) ([]byte, int, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// MapToBookMetadata converts a raw Volume to normalized metadata.
func MapToBookMetadata(v Volume) metadata.PartialMetadata {
	var isbn string
	for _, id := range v.VolumeInfo.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			isbn = id.Identifier
			break
		}
		if id.Type == "ISBN_10" && isbn == "" {
			isbn = id.Identifier
		}
	}

	return metadata.PartialMetadata{
		Title:           v.VolumeInfo.Title,
		Author:          strings.Join(v.VolumeInfo.Authors, ", "),
		Description:     v.VolumeInfo.Description,
		Publisher:       v.VolumeInfo.Publisher,
		Language:        v.VolumeInfo.Language,
		ISBN:            isbn,
		PublicationDate: v.VolumeInfo.PublishedDate,
		Genres:          v.VolumeInfo.Categories,
		CoverURL:        GetCoverURL(v),
		Source:          SourceName,
	}
}

var imageLinkOrder = []string{"extraLarge", "large", "medium", "thumbnail", "smallThumbnail"}

var zoomPattern = regexp.MustCompile(`zoom=\d+`)

// GetCoverURL picks the best available image link and normalizes it
// (spec §4.5): prefer extraLarge > large > medium > thumbnail >
// smallThumbnail, rewrite http to https, strip &edge=curl, and
// normalize zoom=N to zoom=1.
func GetCoverURL(v Volume) string {
	var raw string
	for _, key := range imageLinkOrder {
		if url, ok := v.VolumeInfo.ImageLinks[key]; ok && url != "" {
			raw = url
			break
		}
	}
	if raw == "" {
		return ""
	}

	raw = strings.Replace(raw, "http://", "https://", 1)
	raw = strings.ReplaceAll(raw, "&edge=curl", "")
	raw = zoomPattern.ReplaceAllString(raw, "zoom=1")
	return raw
}

// MatchScore computes the ebook fallback-chain match score (spec
// §4.6.1): 60*titleSim + 40*bestAuthorSim, both Jaccard over
// normalized whitespace-word sets.
func MatchScore(v Volume, wantTitle, wantAuthor string) float64 {
	titleSim := match.JaccardWords(v.VolumeInfo.Title, wantTitle)
	authorSim := match.BestOf(wantAuthor, v.VolumeInfo.Authors, match.JaccardWords)
	return 60*titleSim + 40*authorSim
}
