// Package match implements the similarity scoring and title cleaning
// shared by every external-source match-selection step (spec §4.6.1,
// §4.6.2): Jaccard similarity over normalized character or word sets.
package match

import (
	"regexp"
	"strings"

	"github.com/shelfwatch/ingestd/internal/util"
)

// JaccardChars computes Jaccard similarity over the unique character
// sets of a and b after lower-casing and stripping non-alphanumeric
// characters. Used for OpenLibrary and AniList/MyAnimeList/MangaDex
// title comparisons.
func JaccardChars(a, b string) float64 {
	return jaccard(charSet(normalizeChars(a)), charSet(normalizeChars(b)))
}

// JaccardWords computes Jaccard similarity over the whitespace-split
// word sets of a and b after lower-casing and stripping non-alphanumeric
// characters from each word. Used for Google Books title/author
// comparisons.
func JaccardWords(a, b string) float64 {
	return jaccard(wordSet(normalizeWords(a)), wordSet(normalizeWords(b)))
}

// BestOf returns the maximum of simFn(target, variant) across variants.
// Used both for "best author similarity" across multiple dc:creator
// entries and "best title similarity" across a manga's title variants.
func BestOf(target string, variants []string, simFn func(a, b string) float64) float64 {
	best := 0.0
	for _, v := range variants {
		if v == "" {
			continue
		}
		if s := simFn(target, v); s > best {
			best = s
		}
	}
	return best
}

func normalizeChars(s string) string {
	return strings.ReplaceAll(util.NormalizeSlug(s), "-", "")
}

func normalizeWords(s string) []string {
	slug := util.NormalizeSlug(s)
	if slug == "" {
		return nil
	}
	return strings.Split(slug, "-")
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard[T comparable](a, b map[T]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var (
	volumeMarker = regexp.MustCompile(`(?i)\bv(?:ol(?:ume)?)?\.?\s*\d+`)
	tomeMarker   = regexp.MustCompile(`(?i)\b(?:tome|t)\s*\d+`)
	bracketed    = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// CleanMangaTitle strips volume/tome markers and bracketed segments from
// a manga title before it is used as a search query or match target.
func CleanMangaTitle(s string) string {
	s = volumeMarker.ReplaceAllString(s, "")
	s = tomeMarker.ReplaceAllString(s, "")
	s = bracketed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
