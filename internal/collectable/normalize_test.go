package collectable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Breaking Bad", "breaking bad"},
		{"  The   Matrix: Reloaded!! ", "the matrix reloaded"},
		{"Amélie", "amelie"},
		{"Spider-Man: No Way Home", "spider man no way home"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestFingerprint_StableAcrossProviders(t *testing.T) {
	fromA := Collectable{Title: "The Name of the Wind", PrimaryCreator: "Patrick Rothfuss", Year: 2007, Kind: KindBook, ExternalID: "hardcover:1"}
	fromB := Collectable{Title: "the name of the wind ", PrimaryCreator: "PATRICK ROTHFUSS", Year: 2007, Kind: KindBook, ExternalID: "openlibrary:OL1W", Description: "different"}

	Finalize(&fromA)
	Finalize(&fromB)

	assert.Equal(t, fromA.Fingerprint, fromB.Fingerprint)
	assert.Equal(t, fromA.LightweightFingerprint, fromB.LightweightFingerprint)
	assert.Len(t, fromA.Fingerprint, 40)
}

func TestFingerprint_DistinguishesIdentityFields(t *testing.T) {
	base := Fingerprint("Dune", "Frank Herbert", 1965, KindBook)
	assert.NotEqual(t, base, Fingerprint("Dune", "Frank Herbert", 1984, KindBook))
	assert.NotEqual(t, base, Fingerprint("Dune", "Frank Herbert", 1965, KindMovie))
	assert.NotEqual(t, base, Fingerprint("Dune", "David Lynch", 1965, KindBook))
	assert.Equal(t, LightweightFingerprint("Dune", KindBook), LightweightFingerprint("DUNE", KindBook))
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"Drama", "Crime", "drama"}, DedupeStrings([]string{"Drama", " Crime", "", "Drama", "drama"}))
	assert.Equal(t, []string{}, DedupeStrings(nil))
}

func TestPickCoverURL(t *testing.T) {
	set := ImageSet{Large: "L", Medium: "M", Small: "S", URL: "U"}
	assert.Equal(t, "O", PickCoverURL("O", set))
	assert.Equal(t, "L", PickCoverURL("", set))
	assert.Equal(t, "M", PickCoverURL("", ImageSet{Medium: "M", Small: "S", URL: "U"}))
	assert.Equal(t, "S", PickCoverURL(" ", ImageSet{Small: "S", URL: "U"}))
	assert.Equal(t, "U", PickCoverURL("", ImageSet{URL: "U"}))
	assert.Empty(t, PickCoverURL("", ImageSet{}))
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 2008, ParseYear("2008-01-20"))
	assert.Equal(t, 1999, ParseYear("1999"))
	assert.Equal(t, 2021, ParseYear("Jan 12, 2021"))
	assert.Equal(t, 0, ParseYear(""))
	assert.Equal(t, 0, ParseYear("unknown"))
}

func TestFinalize_FillsCollectionsAndPrimaryCreator(t *testing.T) {
	c := Collectable{
		Title:       " Dune ",
		Creators:    []string{"Frank Herbert", "Frank Herbert"},
		Identifiers: map[string][]string{"isbn": {"123", "123"}, "empty": {""}},
	}
	Finalize(&c)

	assert.Equal(t, "Dune", c.Title)
	assert.Equal(t, "Frank Herbert", c.PrimaryCreator)
	assert.Equal(t, []string{"Frank Herbert"}, c.Creators)
	assert.Equal(t, KindOther, c.Kind)
	require.NotNil(t, c.Tags)
	require.NotNil(t, c.Images)
	assert.Equal(t, map[string][]string{"isbn": {"123"}}, c.Identifiers)
	assert.NotEmpty(t, c.Fingerprint)
}

func TestCollectable_CloneIsDeep(t *testing.T) {
	idx := 1
	c := &Collectable{Title: "x", Tags: []string{"a"}, Identifiers: map[string][]string{"k": {"v"}}, SourceIndex: &idx}
	cp := c.Clone()
	cp.Tags[0] = "b"
	cp.Identifiers["k"][0] = "w"
	*cp.SourceIndex = 5

	assert.Equal(t, "a", c.Tags[0])
	assert.Equal(t, "v", c.Identifiers["k"][0])
	assert.Equal(t, 1, *c.SourceIndex)
}

func TestSearchCriteria_Valid(t *testing.T) {
	assert.False(t, SearchCriteria{}.Valid())
	assert.False(t, SearchCriteria{Title: "   "}.Valid())
	assert.True(t, SearchCriteria{Title: "Dune"}.Valid())
}
