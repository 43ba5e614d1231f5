// Package myanimelist implements the MyAnimeList v2 manga client: the
// second link in the manga fallback chain.
package myanimelist

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
	"github.com/shelfwatch/ingestd/internal/htmlclean"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata"
	"github.com/shelfwatch/ingestd/internal/ratelimit"
	"github.com/shelfwatch/ingestd/internal/retry"
)

// SourceName is the display name used in events and quarantine reasons.
const SourceName = "MyAnimeList"

const limiterKey = "myanimelist"

const fields = "id,title,alternative_titles,synopsis,genres,media_type,start_date,authors{first_name,last_name},main_picture"

// mediaTypeManga is the MAL media_type value this client scores a +10
// bonus for (spec §4.6.1).
const mediaTypeManga = "manga"

// Client queries the MyAnimeList v2 manga search endpoint.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	cfg     config.SourceConfig
	logger  *slog.Logger
}

// New creates a client bound to cfg's base URL, client id, timeout,
// and rate limit.
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
	Data []struct {
		Node Manga `json:"node"`
	} `json:"data"`
}

// Manga is a single MyAnimeList search result.
type Manga struct {
	ID                 int    `json:"id"`
	Title              string `json:"title"`
	AlternativeTitles struct {
		Synonyms []string `json:"synonyms"`
		En       string   `json:"en"`
		Ja       string   `json:"ja"`
	} `json:"alternative_titles"`
	Synopsis  string `json:"synopsis"`
	MediaType string `json:"media_type"`
	Genres    []struct {
		Name string `json:"name"`
	} `json:"genres"`
	StartDate string `json:"start_date"`
	Authors   []struct {
		Node struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"node"`
		Role string `json:"role"`
	} `json:"authors"`
	MainPicture struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"main_picture"`
}

// Variants returns every title variant for "best title similarity"
// matching.
func (m Manga) Variants() []string {
	variants := []string{m.Title, m.AlternativeTitles.En, m.AlternativeTitles.Ja}
	return append(variants, m.AlternativeTitles.Synonyms...)
}

func (m Manga) authorNames() []string {
	names := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		name := strings.TrimSpace(a.Node.FirstName + " " + a.Node.LastName)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SearchByMangaName searches MyAnimeList manga by title.
func (c *Client) SearchByMangaName(ctx context.Context, title string) ([]Manga, error) {
	q := url.Values{"q": {title}, "limit": {"10"}, "fields": {fields}}
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
				return retry.Stop(fmt.Errorf("myanimelist: decode response: %w", err))
			}
			return nil
		case status == http.StatusUnauthorized, status == http.StatusForbidden:
			return retry.Stop(fmt.Errorf("myanimelist: invalid client id (status %d)", status))
		case status == http.StatusTooManyRequests:
			return retry.After(fmt.Errorf("myanimelist: rate limited"), retryAfter)
		case status >= 500:
			return retry.Retryable(fmt.Errorf("myanimelist: server error %d", status))
		default:
			return retry.Stop(fmt.Errorf("myanimelist: unexpected status %d", status))
		}
	})
	if err != nil {
		return nil, apperrors.ExternalSourcef("%s: %v", SourceName, err)
	}

	mangas := make([]Manga, 0, len(result.Data))
	for _, d := range result.Data {
		mangas = append(mangas, d.Node)
	}
	return mangas, nil
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values) ([]byte, int, time.Duration, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-MAL-CLIENT-ID", c.cfg.APIKey)
	}

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
		Title:           m.Title,
		Author:          strings.Join(m.authorNames(), ", "),
		Description:     htmlclean.Strip(m.Synopsis),
		PublicationDate: m.StartDate,
		CoverURL:        GetCoverURL(m),
		Source:          SourceName,
	}
	for _, g := range m.Genres {
		pm.Genres = append(pm.Genres, g.Name)
	}
	return pm
}

// GetCoverURL returns the best available cover image URL.
func GetCoverURL(m Manga) string {
	if m.MainPicture.Large != "" {
		return m.MainPicture.Large
	}
	return m.MainPicture.Medium
}

// MatchScore computes the manga fallback-chain match score (spec
// §4.6.1): 80*bestTitleSim, matched against every title variant, plus
// +10 for media_type=manga and +5 each for non-empty synopsis/main_picture.
func MatchScore(m Manga, wantTitle string) float64 {
	score := 80 * match.BestOf(wantTitle, m.Variants(), match.JaccardChars)

	if strings.EqualFold(m.MediaType, mediaTypeManga) {
		score += 10
	}
	if m.Synopsis != "" {
		score += 5
	}
	if GetCoverURL(m) != "" {
		score += 5
	}

	return score
}
