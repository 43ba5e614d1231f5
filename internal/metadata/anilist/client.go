// Package anilist implements the AniList GraphQL client: the first
// link in the manga fallback chain.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
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
const SourceName = "AniList"

const limiterKey = "anilist"

const searchQuery = `
query ($search: String) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: MANGA) {
      id
      title { romaji english native }
      synonyms
      description
      format
      averageScore
      startDate { year }
      genres
      coverImage { extraLarge large }
      staff(perPage: 5) {
        edges { role node { name { full } } }
      }
    }
  }
}`

// Client queries AniList's public GraphQL endpoint.
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

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Message string         `json:"message"`
	Status  int            `json:"status"`
}

// Media is a single AniList manga search result.
type Media struct {
	ID           int      `json:"id"`
	Title        Title    `json:"title"`
	Synonyms     []string `json:"synonyms"`
	Description  string   `json:"description"`
	Format       string   `json:"format"`
	AverageScore int      `json:"averageScore"`
	StartDate    struct {
		Year int `json:"year"`
	} `json:"startDate"`
	Genres     []string `json:"genres"`
	CoverImage struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
	} `json:"coverImage"`
	Staff struct {
		Edges []struct {
			Role string `json:"role"`
			Node struct {
				Name struct {
					Full string `json:"full"`
				} `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"staff"`
}

// Title holds AniList's romaji/english/native title variants.
type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// Variants returns the romaji, English and native titles (empty ones
// included) plus synonyms, used for "best title similarity across
// variants" matching.
func (m Media) Variants() []string {
	variants := []string{m.Title.Romaji, m.Title.English, m.Title.Native}
	return append(variants, m.Synonyms...)
}

// Author returns the first staff member credited as a story role, or
// the first staff member listed when none is.
func (m Media) Author() string {
	for _, edge := range m.Staff.Edges {
		if strings.Contains(strings.ToLower(edge.Role), "story") {
			return edge.Node.Name.Full
		}
	}
	if len(m.Staff.Edges) > 0 {
		return m.Staff.Edges[0].Node.Name.Full
	}
	return ""
}

// SearchByMangaName searches AniList manga by title.
func (c *Client) SearchByMangaName(ctx context.Context, title string) ([]Media, error) {
	opts := retry.Options{MaxAttempts: c.cfg.MaxRetries, BaseDelay: retry.DefaultOptions().BaseDelay}

	var result graphqlResponse
	err := retry.Do(ctx, opts, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return retry.Stop(err)
		}

		body, status, retryAfter, err := c.post(ctx, title)
		if err != nil {
			return retry.Retryable(err)
		}

		switch {
		case status == http.StatusOK:
			if err := json.Unmarshal(body, &result); err != nil {
				return retry.Stop(fmt.Errorf("anilist: decode response: %w", err))
			}
			if len(result.Errors) > 0 {
				for _, gerr := range result.Errors {
					if gerr.Status == http.StatusTooManyRequests {
						return retry.After(fmt.Errorf("anilist: %s", gerr.Message), retryAfter)
					}
				}
				return retry.Stop(fmt.Errorf("anilist: %s", result.Errors[0].Message))
			}
			return nil
		case status == http.StatusTooManyRequests:
			return retry.After(fmt.Errorf("anilist: rate limited"), retryAfter)
		case status >= 500:
			return retry.Retryable(fmt.Errorf("anilist: server error %d", status))
		default:
			return retry.Stop(fmt.Errorf("anilist: unexpected status %d", status))
		}
	})
	if err != nil {
		return nil, apperrors.ExternalSourcef("%s: %v", SourceName, err)
	}

	return result.Data.Page.Media, nil
}

func (c *Client) post(ctx context.Context, search string) ([]byte, int, time.Duration, error) {
	payload, err := json.Marshal(graphqlRequest{Query: searchQuery, Variables: map[string]any{"search": search}})
	if err != nil {
		return nil, 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/"), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
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

// MapToBookMetadata converts a raw Media to normalized metadata.
func MapToBookMetadata(m Media) metadata.PartialMetadata {
	title := m.Title.Romaji
	if title == "" {
		title = m.Title.English
	}

	pm := metadata.PartialMetadata{
		Title:       title,
		Author:      m.Author(),
		Description: htmlclean.Strip(m.Description),
		Genres:      m.Genres,
		CoverURL:    GetCoverURL(m),
		Source:      SourceName,
	}
	if m.StartDate.Year > 0 {
		pm.PublicationDate = strconv.Itoa(m.StartDate.Year)
	}
	return pm
}

// GetCoverURL returns the best available cover image URL.
func GetCoverURL(m Media) string {
	if m.CoverImage.ExtraLarge != "" {
		return m.CoverImage.ExtraLarge
	}
	return m.CoverImage.Large
}

// MatchScore computes the manga fallback-chain match score (spec
// §4.6.1): 80*bestTitleSim, matched against every title variant plus
// synonyms, plus +10 for format=MANGA and +averageScore/10 (capped at 10).
func MatchScore(m Media, wantTitle string) float64 {
	score := 80 * match.BestOf(wantTitle, m.Variants(), match.JaccardChars)

	if strings.EqualFold(m.Format, "MANGA") {
		score += 10
	}
	if bonus := float64(m.AverageScore) / 10; bonus > 0 {
		if bonus > 10 {
			bonus = 10
		}
		score += bonus
	}

	return score
}
