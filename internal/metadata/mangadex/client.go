// Package mangadex implements the MangaDex manga search client: the
// last link in the manga fallback chain.
package mangadex

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
	"time"

	"github.com/shelfwatch/ingestd/internal/config"
	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata"
	"github.com/shelfwatch/ingestd/internal/ratelimit"
	"github.com/shelfwatch/ingestd/internal/retry"
)

// SourceName is the display name used in events and quarantine reasons.
const SourceName = "MangaDex"

const limiterKey = "mangadex"

const coverBase = "https://uploads.mangadex.org/covers"

// Client queries the MangaDex manga search endpoint.
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
	Data []Manga `json:"data"`
}

// Manga is a single MangaDex search result.
type Manga struct {
	ID            string `json:"id"`
	Attributes    struct {
		Title         map[string]string   `json:"title"`
		AltTitles     []map[string]string `json:"altTitles"`
		Description   map[string]string   `json:"description"`
		Tags          []Tag               `json:"tags"`
		Year          int                 `json:"year"`
	} `json:"attributes"`
	Relationships []Relationship `json:"relationships"`
}

// Tag is a MangaDex genre/content tag.
type Tag struct {
	Attributes struct {
		Name map[string]string `json:"name"`
	} `json:"attributes"`
}

// Relationship is a linked entity (author, artist, cover_art, ...).
type Relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		FileName string `json:"fileName"`
		Name     string `json:"name"`
	} `json:"attributes"`
}

// Variants returns the main title plus every alt-title variant, in
// every locale present, for "best title similarity" matching.
func (m Manga) Variants() []string {
	variants := localizedValues(m.Attributes.Title)
	for _, alt := range m.Attributes.AltTitles {
		variants = append(variants, localizedValues(alt)...)
	}
	return variants
}

func localizedValues(m map[string]string) []string {
	values := make([]string, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	return values
}

// localized prefers the "en" entry, else the first key in iteration
// order (spec §4.5 MangaDex localized strings rule).
func localized(m map[string]string) string {
	if v, ok := m["en"]; ok {
		return v
	}
	for _, v := range m {
		return v
	}
	return ""
}

func (m Manga) author() string {
	for _, r := range m.Relationships {
		if r.Type == "author" {
			return r.Attributes.Name
		}
	}
	return ""
}

func (m Manga) coverFileName() string {
	for _, r := range m.Relationships {
		if r.Type == "cover_art" {
			return r.Attributes.FileName
		}
	}
	return ""
}

// SearchByMangaName searches MangaDex manga by title.
func (c *Client) SearchByMangaName(ctx context.Context, title string) ([]Manga, error) {
	q := url.Values{"title": {title}, "limit": {"10"}}
	q.Add("includes[]", "cover_art")
	q.Add("includes[]", "author")

	opts := retry.Options{MaxAttempts: c.cfg.MaxRetries, BaseDelay: retry.DefaultOptions().BaseDelay, DefaultRetryAfter: retry.DefaultOptions().DefaultRetryAfter}

	var result searchResponse
	err := retry.Do(ctx, opts, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return retry.Stop(err)
		}

		body, status, retryAfter, err := c.doGet(ctx, "/manga", q)
		if err != nil {
			return retry.Retryable(err)
		}

		switch {
		case status == http.StatusOK:
			if err := json.Unmarshal(body, &result); err != nil {
				return retry.Stop(fmt.Errorf("mangadex: decode response: %w", err))
			}
			return nil
		case status == http.StatusForbidden:
			// IP-ban protection: never retry a 403.
			return retry.Stop(fmt.Errorf("mangadex: forbidden (status 403)"))
		case status == http.StatusTooManyRequests:
			return retry.After(fmt.Errorf("mangadex: rate limited"), retryAfter)
		case status >= 500:
			return retry.Retryable(fmt.Errorf("mangadex: server error %d", status))
		default:
			return retry.Stop(fmt.Errorf("mangadex: unexpected status %d", status))
		}
	})
	if err != nil {
		return nil, apperrors.ExternalSourcef("%s: %v", SourceName, err)
	}

	return result.Data, nil
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values) ([]byte, int, time.Duration, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, err
	}

	var retryAfter time.Duration
	if secs := resp.Header.Get("Retry-After"); secs != "" {
		if n, perr := strconv.Atoi(secs); perr == nil {
			retryAfter = time.Duration(n) * time.Second
		}
	}

	return body, resp.StatusCode, retryAfter, nil
}

// MapToBookMetadata converts a raw Manga to normalized metadata.
func MapToBookMetadata(m Manga) metadata.PartialMetadata {
	pm := metadata.PartialMetadata{
		Title:       localized(m.Attributes.Title),
		Author:      m.author(),
		Description: localized(m.Attributes.Description),
		CoverURL:    GetCoverURL(m),
		Source:      SourceName,
	}
	if m.Attributes.Year > 0 {
		pm.PublicationDate = strconv.Itoa(m.Attributes.Year)
	}
	for _, tag := range m.Attributes.Tags {
		if name := localized(tag.Attributes.Name); name != "" {
			pm.Genres = append(pm.Genres, name)
		}
	}
	return pm
}

// GetCoverURL constructs the cover image URL from the cover_art
// relationship's file name (spec §4.5): <coverBase>/<mangaId>/<fileName>.
func GetCoverURL(m Manga) string {
	fileName := m.coverFileName()
	if fileName == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", coverBase, m.ID, fileName)
}

// MatchScore computes the manga fallback-chain match score (spec
// §4.6.1): 80*bestTitleSim, matched against every localized title and
// alt-title variant, plus +5 each for non-empty description, cover,
// author, and tags.
func MatchScore(m Manga, wantTitle string) float64 {
	score := 80 * match.BestOf(wantTitle, m.Variants(), match.JaccardChars)

	if localized(m.Attributes.Description) != "" {
		score += 5
	}
	if GetCoverURL(m) != "" {
		score += 5
	}
	if m.author() != "" {
		score += 5
	}
	if len(m.Attributes.Tags) > 0 {
		score += 5
	}

	return score
}
