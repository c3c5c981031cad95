package collectable

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// NormalizeText lowercases s, transliterates it to ASCII, collapses every
// run of non-alphanumeric characters into a single space and trims.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(unidecode.Unidecode(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Fingerprint returns the stable identity of a collectable. Two records
// describing the same real-world item produce the same value regardless of
// which provider supplied them.
func Fingerprint(title, primaryCreator string, year int, kind Kind) string {
	yearPart := ""
	if year > 0 {
		yearPart = strconv.Itoa(year)
	}
	return hashParts(NormalizeText(title), NormalizeText(primaryCreator), yearPart, string(kind))
}

// LightweightFingerprint ignores creator and year, for loose pre-deduplication.
func LightweightFingerprint(title string, kind Kind) string {
	return hashParts(NormalizeText(title), string(kind))
}

func hashParts(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// DedupeStrings trims entries, drops blanks and removes exact duplicates
// while keeping first-seen order.
func DedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ImageSet is the size ladder most upstreams expose for covers.
type ImageSet struct {
	Large  string
	Medium string
	Small  string
	URL    string
}

// PickCoverURL selects the override if present, then large, medium, small
// and finally the generic url.
func PickCoverURL(override string, set ImageSet) string {
	for _, candidate := range []string{override, set.Large, set.Medium, set.Small, set.URL} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return ""
}

// ExternalID namespaces an upstream id by provider name.
func ExternalID(provider, id string) string {
	if id == "" {
		return ""
	}
	return provider + ":" + id
}

// ParseYear extracts a leading four digit year from dates such as
// "2008-01-20", "2008" or "Jan 20, 2008". Returns 0 when none is found.
func ParseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil && y > 0 {
			return y
		}
	}
	// Fall back to the last run of four digits.
	for i := len(date) - 4; i >= 0; i-- {
		chunk := date[i : i+4]
		if y, err := strconv.Atoi(chunk); err == nil && y > 1000 {
			if (i == 0 || !isDigit(date[i-1])) && (i+4 == len(date) || !isDigit(date[i+4])) {
				return y
			}
		}
	}
	return 0
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Finalize deduplicates array fields, guarantees non-nil collections and
// computes fingerprints. Every normalizer calls it last.
func Finalize(c *Collectable) {
	c.Title = strings.TrimSpace(c.Title)
	c.Creators = DedupeStrings(c.Creators)
	if c.PrimaryCreator == "" && len(c.Creators) > 0 {
		c.PrimaryCreator = c.Creators[0]
	}
	c.Publishers = DedupeStrings(c.Publishers)
	c.Tags = DedupeStrings(c.Tags)
	c.Genre = DedupeStrings(c.Genre)
	c.Formats = DedupeStrings(c.Formats)
	if c.Identifiers == nil {
		c.Identifiers = make(map[string][]string)
	}
	for k, v := range c.Identifiers {
		v = DedupeStrings(v)
		if len(v) == 0 {
			delete(c.Identifiers, k)
			continue
		}
		c.Identifiers[k] = v
	}
	if c.Images == nil {
		c.Images = []Image{}
	}
	if c.Sources == nil {
		c.Sources = []Source{}
	}
	if c.Kind == "" {
		c.Kind = KindOther
	}
	c.Fingerprint = Fingerprint(c.Title, c.PrimaryCreator, c.Year, c.Kind)
	c.LightweightFingerprint = LightweightFingerprint(c.Title, c.Kind)
}
