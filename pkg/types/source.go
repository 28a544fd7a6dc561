package types

import (
	"net/url"
	"strings"
	"time"
)

// SourceType records how a recipe entered the system.
type SourceType string

// The closed set of source types.
const (
	SourceManual SourceType = "manual"
	SourceScrape SourceType = "scrape"
	SourceOCR    SourceType = "ocr"
)

// SourceTypes lists every valid SourceType.
var SourceTypes = []SourceType{SourceManual, SourceScrape, SourceOCR}

// Valid reports whether st is one of the known source types.
func (st SourceType) Valid() bool {
	switch st {
	case SourceManual, SourceScrape, SourceOCR:
		return true
	}
	return false
}

// ParseSourceType converts s into a SourceType, rejecting unknown values.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", invalid("recipe_source", "source_type", "must be one of manual, scrape, ocr")
	}
	return st, nil
}

// RecipeSource describes where a recipe came from. A recipe has at most one.
type RecipeSource struct {
	ID         int64      `json:"id"`
	RecipeID   int64      `json:"recipe_id"`
	SourceType SourceType `json:"source_type"`
	SourceURL  string     `json:"source_url,omitempty"`
	SourceSite string     `json:"source_site,omitempty"`
	ScrapedAt  *time.Time `json:"scraped_at,omitempty"`
}

// Validate checks the source type and, when present, that the URL is absolute.
func (s *RecipeSource) Validate() error {
	if !s.SourceType.Valid() {
		return invalid("recipe_source", "source_type", "must be one of manual, scrape, ocr")
	}
	s.SourceURL = strings.TrimSpace(s.SourceURL)
	if s.SourceURL != "" {
		u, err := url.Parse(s.SourceURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("recipe_source", "source_url", "must be an absolute URL")
		}
	}
	return nil
}
