// Package collectable defines the canonical record shape every catalog
// provider normalizes into, plus the helpers shared by all normalizers.
package collectable

import (
	"strings"
	"time"
)

// Kind identifies the media type of a collectable.
type Kind string

const (
	KindBook  Kind = "book"
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
	KindGame  Kind = "game"
	KindAlbum Kind = "album"
	KindOther Kind = "other"
)

// ParseKind maps a loose kind string to a Kind, defaulting to KindOther.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindBook:
		return KindBook
	case KindMovie:
		return KindMovie
	case KindTV:
		return KindTV
	case KindGame:
		return KindGame
	case KindAlbum:
		return KindAlbum
	default:
		return KindOther
	}
}

// SearchCriteria is the immutable input to a lookup.
type SearchCriteria struct {
	Title       string            `json:"title"`
	Year        int               `json:"year,omitempty"`
	Format      string            `json:"format,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

// Valid reports whether the criteria carries a usable title.
func (c SearchCriteria) Valid() bool {
	return strings.TrimSpace(c.Title) != ""
}

// Identifier returns the identifier stored under key, if any.
func (c SearchCriteria) Identifier(key string) string {
	if c.Identifiers == nil {
		return ""
	}
	return strings.TrimSpace(c.Identifiers[key])
}

// Image is one artwork variant reported by a provider.
type Image struct {
	URL    string `json:"url"`
	Kind   string `json:"kind,omitempty"` // cover, poster, backdrop, screenshot
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Attribution carries the credit line some providers require.
type Attribution struct {
	Text    string `json:"text"`
	URL     string `json:"url,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`
}

// Source records where a collectable's data came from.
type Source struct {
	Provider  string    `json:"provider"`
	ID        string    `json:"id,omitempty"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Collectable is the canonical, provider-independent catalog record.
type Collectable struct {
	Title                  string              `json:"title"`
	PrimaryCreator         string              `json:"primaryCreator,omitempty"`
	Year                   int                 `json:"year,omitempty"`
	Kind                   Kind                `json:"kind"`
	Description            string              `json:"description,omitempty"`
	Subtitle               string              `json:"subtitle,omitempty"`
	Creators               []string            `json:"creators"`
	Publishers             []string            `json:"publishers"`
	Tags                   []string            `json:"tags"`
	Genre                  []string            `json:"genre"`
	Runtime                int                 `json:"runtime,omitempty"`
	Formats                []string            `json:"formats"`
	SystemName             string              `json:"systemName,omitempty"`
	Identifiers            map[string][]string `json:"identifiers"`
	Images                 []Image             `json:"images"`
	CoverURL               string              `json:"coverUrl,omitempty"`
	CoverImageURL          string              `json:"coverImageUrl,omitempty"`
	CoverImageSource       string              `json:"coverImageSource,omitempty"`
	Attribution            *Attribution        `json:"attribution,omitempty"`
	Sources                []Source            `json:"sources"`
	ExternalID             string              `json:"externalId,omitempty"`
	Fingerprint            string              `json:"fingerprint"`
	LightweightFingerprint string              `json:"lightweightFingerprint,omitempty"`

	// Provenance set by the router.
	MatchedSource       string   `json:"_source,omitempty"`
	SourceIndex         *int     `json:"_sourceIndex,omitempty"`
	SourcePriority      *int     `json:"_sourcePriority,omitempty"`
	ContributingSources []string `json:"_sources,omitempty"`
}

// AddIdentifier appends value under key, skipping blanks and duplicates.
func (c *Collectable) AddIdentifier(key, value string) {
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if c.Identifiers == nil {
		c.Identifiers = make(map[string][]string)
	}
	for _, existing := range c.Identifiers[key] {
		if existing == value {
			return
		}
	}
	c.Identifiers[key] = append(c.Identifiers[key], value)
}

// Clone returns a deep copy so router tagging never mutates adapter or cache state.
func (c *Collectable) Clone() *Collectable {
	if c == nil {
		return nil
	}
	out := *c
	out.Creators = cloneStrings(c.Creators)
	out.Publishers = cloneStrings(c.Publishers)
	out.Tags = cloneStrings(c.Tags)
	out.Genre = cloneStrings(c.Genre)
	out.Formats = cloneStrings(c.Formats)
	out.ContributingSources = cloneStrings(c.ContributingSources)
	if c.Images != nil {
		out.Images = append([]Image(nil), c.Images...)
	}
	if c.Sources != nil {
		out.Sources = append([]Source(nil), c.Sources...)
	}
	if c.Identifiers != nil {
		out.Identifiers = make(map[string][]string, len(c.Identifiers))
		for k, v := range c.Identifiers {
			out.Identifiers[k] = cloneStrings(v)
		}
	}
	if c.Attribution != nil {
		a := *c.Attribution
		out.Attribution = &a
	}
	if c.SourceIndex != nil {
		v := *c.SourceIndex
		out.SourceIndex = &v
	}
	if c.SourcePriority != nil {
		v := *c.SourcePriority
		out.SourcePriority = &v
	}
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
