package nct

import (
	"testing"

	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid("NCT1234567"))
	assert.True(t, IsValid("NCT12345678"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("nct12345678"))
	assert.False(t, IsValid("NCT123456789"))
}

func TestParseFormatRoundTrip(t *testing.T) {
	id, ok := Parse("NCT02513394")
	assert.True(t, ok)
	assert.Equal(t, ID(2513394), id)
	assert.Equal(t, "NCT02513394", id.String())
}

func TestParseInvalid(t *testing.T) {
	_, ok := Parse("not-an-id")
	assert.False(t, ok)
}

func TestFormatOutOfRange(t *testing.T) {
	_, err := Format(100_000_000)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

// TestValidityRoundTrip checks invariant 7 from spec.md §8:
// isValid(format(parse(x))) == isValid(x) for all strings x.
func TestValidityRoundTrip(t *testing.T) {
	cases := []string{"NCT02513394", "NCT00000001", "bogus", "", "NCT1234567"}
	for _, s := range cases {
		id, ok := Parse(s)
		if !ok {
			assert.False(t, IsValid(s))
			continue
		}
		formatted, err := Format(uint32(id))
		assert.NoError(t, err)
		assert.Equal(t, IsValid(s), IsValid(formatted))
	}
}

func TestExtractFromStudyPrefersSystem(t *testing.T) {
	obj := &types.StudyObject{
		Identifier: []types.Identifier{
			{System: "urn:other", Value: "NCT11111111"},
			{System: "http://clinicaltrials.gov/", Value: "NCT02513394"},
		},
	}
	id, ok := ExtractFromStudy(obj)
	assert.True(t, ok)
	assert.Equal(t, "NCT02513394", id)
}

func TestExtractFromStudyFallsBackToValidValue(t *testing.T) {
	obj := &types.StudyObject{
		Identifier: []types.Identifier{
			{System: "urn:other", Value: "not-valid"},
			{System: "urn:other", Value: "NCT02513394"},
		},
	}
	id, ok := ExtractFromStudy(obj)
	assert.True(t, ok)
	assert.Equal(t, "NCT02513394", id)
}

func TestExtractFromStudyNone(t *testing.T) {
	obj := &types.StudyObject{Identifier: []types.Identifier{{System: "urn:other", Value: "nope"}}}
	_, ok := ExtractFromStudy(obj)
	assert.False(t, ok)
}

func TestGroupByNct(t *testing.T) {
	a := &types.StudyObject{Identifier: []types.Identifier{{System: "urn:other", Value: "NCT00000001"}}}
	b := &types.StudyObject{Identifier: []types.Identifier{{System: "urn:other", Value: "NCT00000001"}}}
	c := &types.StudyObject{Identifier: []types.Identifier{{System: "urn:other", Value: "NCT00000002"}}}
	invalid := &types.StudyObject{}

	groups := GroupByNct([]*types.StudyObject{a, b, c, invalid})
	assert.Len(t, groups, 2)
	assert.Equal(t, []*types.StudyObject{a, b}, groups["NCT00000001"])
	assert.Equal(t, []*types.StudyObject{c}, groups["NCT00000002"])
}
