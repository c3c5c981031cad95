package catalog

import (
	"github.com/google/go-cmp/cmp"

	"github.com/shelfwise/shelfwise/internal/collectable"
)

// filler copies one field from src into dst when dst lacks it.
type filler struct {
	field string
	fill  func(dst *collectable.Collectable, src *collectable.Collectable)
}

// fillableFields is the explicit allow-list of fields merge mode fills from
// lower-priority results. Everything else comes from the base only.
var fillableFields = []filler{
	{"description", func(dst, src *collectable.Collectable) {
		if dst.Description == "" {
			dst.Description = src.Description
		}
	}},
	{"coverUrl", func(dst, src *collectable.Collectable) {
		if dst.CoverURL == "" && src.CoverURL != "" {
			dst.CoverURL = src.CoverURL
			dst.CoverImageURL = src.CoverImageURL
			dst.CoverImageSource = src.CoverImageSource
		}
	}},
	{"year", func(dst, src *collectable.Collectable) {
		if dst.Year == 0 {
			dst.Year = src.Year
		}
	}},
	{"publishers", func(dst, src *collectable.Collectable) {
		dst.Publishers = appendUnique(dst.Publishers, src.Publishers)
	}},
	{"tags", func(dst, src *collectable.Collectable) {
		dst.Tags = appendUnique(dst.Tags, src.Tags)
	}},
	{"identifiers", func(dst, src *collectable.Collectable) {
		for key, values := range src.Identifiers {
			if _, ok := dst.Identifiers[key]; ok {
				continue
			}
			if dst.Identifiers == nil {
				dst.Identifiers = make(map[string][]string)
			}
			dst.Identifiers[key] = append([]string(nil), values...)
		}
	}},
}

// FillableFields lists the field names merge mode fills.
func FillableFields() []string {
	names := make([]string, len(fillableFields))
	for i, f := range fillableFields {
		names[i] = f.field
	}
	return names
}

// Merge combines results ordered highest priority first. The first result is
// the base; gaps in the fillable fields are filled from the others in order.
// A single result is returned unchanged.
func Merge(results []collectable.Collectable) *collectable.Collectable {
	switch len(results) {
	case 0:
		return nil
	case 1:
		only := results[0]
		return &only
	}

	merged := results[0].Clone()
	for i := 1; i < len(results); i++ {
		src := &results[i]
		for _, f := range fillableFields {
			f.fill(merged, src)
		}
	}

	// Year may have been filled, keep identity consistent with the content.
	merged.Fingerprint = collectable.Fingerprint(merged.Title, merged.PrimaryCreator, merged.Year, merged.Kind)
	merged.LightweightFingerprint = collectable.LightweightFingerprint(merged.Title, merged.Kind)
	return merged
}

// appendUnique concatenates extra onto base, skipping elements deep-equal to
// one already present.
func appendUnique[T any](base, extra []T) []T {
	out := make([]T, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, candidate := range extra {
		dup := false
		for _, existing := range out {
			if cmp.Equal(existing, candidate) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, candidate)
		}
	}
	return out
}
