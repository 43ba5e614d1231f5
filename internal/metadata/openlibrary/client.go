// Package openlibrary implements the OpenLibrary search client: the
// first link in the ebook fallback chain.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shelfwatch/ingestd/internal/config"
	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata"
	"github.com/shelfwatch/ingestd/internal/ratelimit"
	"github.com/shelfwatch/ingestd/internal/retry"
)

// SourceName is the display name used in events and quarantine reasons.
const SourceName = "OpenLibrary"

const limiterKey = "openlibrary"

// Client queries OpenLibrary's search and ISBN lookup endpoints.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	cfg     config.SourceConfig
	logger  *slog.Logger
}

// New creates a client bound to cfg's base URL, timeout, and rate limit.
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

type searchResponse struct {
	Docs []Doc `json:"docs"`
}

// Doc is a single OpenLibrary search result.
type Doc struct {
	Key             string   `json:"key"`
	Title           string   `json:"title"`
	AuthorName      []string `json:"author_name"`
	FirstPublishYr  int      `json:"first_publish_year"`
	Publisher       []string `json:"publisher"`
	Language        []string `json:"language"`
	ISBN            []string `json:"isbn"`
	CoverI          int      `json:"cover_i"`
	Subject         []string `json:"subject"`
	FirstSentence   []string `json:"first_sentence"`
}

// SearchByISBN looks up an edition by ISBN-10/13.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]Doc, error) {
	return c.search(ctx, url.Values{"isbn": {isbn}})
}

// SearchByTitle searches by title, optionally narrowed by author.
func (c *Client) SearchByTitle(ctx context.Context, title, author string) ([]Doc, error) {
	q := url.Values{"title": {title}}
	if author != "" {
		q.Set("author", author)
	}
	return c.search(ctx, q)
}

func (c *Client) search(ctx context.Context, q url.Values) ([]Doc, error) {
	q.Set("limit", "10")
	opts := retry.Options{MaxAttempts: c.cfg.MaxRetries, BaseDelay: retry.DefaultOptions().BaseDelay, DefaultRetryAfter: retry.DefaultOptions().DefaultRetryAfter}

	var result searchResponse
	err := retry.Do(ctx, opts, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return retry.Stop(err)
		}

		body, status, err := c.doGet(ctx, "/search.json", q)
		if err != nil {
			return retry.Retryable(err)
		}

		switch {
		case status == http.StatusOK:
			if err := json.Unmarshal(body, &result); err != nil {
				return retry.Stop(fmt.Errorf("openlibrary: decode search response: %w", err))
			}
			return nil
		case status >= 500:
			return retry.Retryable(fmt.Errorf("openlibrary: server error %d", status))
		default:
			return retry.Stop(fmt.Errorf("openlibrary: unexpected status %d", status))
		}
	})
	if err != nil {
		return nil, apperrors.ExternalSourcef("%s: %v", SourceName, err)
	}

	return result.Docs, nil
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values) ([]byte, int, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "shelfwatchd/1.0")

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

// MapToBookMetadata converts a single raw search Doc to normalized
// metadata. It does no candidate selection; scoring is MatchScore's job.
func MapToBookMetadata(doc Doc) metadata.PartialMetadata {
	var isbn string
	if len(doc.ISBN) > 0 {
		isbn = doc.ISBN[0]
	}
	var publisher, language string
	if len(doc.Publisher) > 0 {
		publisher = doc.Publisher[0]
	}
	if len(doc.Language) > 0 {
		language = doc.Language[0]
	}

	pm := metadata.PartialMetadata{
		Title:    doc.Title,
		Author:   strings.Join(doc.AuthorName, ", "),
		Genres:   doc.Subject,
		ISBN:     isbn,
		Publisher: publisher,
		Language: language,
		Source:   SourceName,
	}
	if doc.FirstPublishYr > 0 {
		pm.PublicationDate = strconv.Itoa(doc.FirstPublishYr)
	}
	if len(doc.FirstSentence) > 0 {
		pm.Description = doc.FirstSentence[0]
	}
	return pm
}

// GetCoverURL returns the large-size cover image URL for a doc, or ""
// if it has no cover.
func GetCoverURL(doc Doc) string {
	if doc.CoverI == 0 {
		return ""
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
}

// MatchScore computes the ebook fallback-chain match score (spec
// §4.6.1): 60*titleSim + 40*bestAuthorSim, both Jaccard over
// normalized character sets.
func MatchScore(doc Doc, wantTitle, wantAuthor string) float64 {
	titleSim := match.JaccardChars(doc.Title, wantTitle)
	authorSim := match.BestOf(wantAuthor, doc.AuthorName, match.JaccardChars)
	return 60*titleSim + 40*authorSim
}
