package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPairKey_Canonical(t *testing.T) {
	assert.Equal(t, NewPairKey("B", "A"), NewPairKey("A", "B"))
	assert.Equal(t, PairKey{A: "A", B: "B"}, NewPairKey("B", "A"))
}

func TestStructural(t *testing.T) {
	a := Record{Key: NewPairKey("X", "Y"), Sign: 1, HasSign: true}
	b := Record{Key: NewPairKey("Y", "X"), Sign: -1, HasSign: true}
	c := Record{Key: NewPairKey("X", "Z"), Sign: 1, HasSign: true}

	assert.True(t, Structural(a, b))
	assert.False(t, Structural(a, c))
}

func TestSignAware(t *testing.T) {
	pos := Record{Key: NewPairKey("X", "Y"), Sign: 1, HasSign: true}
	neg := Record{Key: NewPairKey("X", "Y"), Sign: -1, HasSign: true}
	unsigned := Record{Key: NewPairKey("X", "Y")}
	unsigned2 := Record{Key: NewPairKey("X", "Y")}

	assert.True(t, SignAware(pos, pos))
	assert.False(t, SignAware(pos, neg))
	assert.True(t, SignAware(unsigned, unsigned2))
	// signed never matches unsigned
	assert.False(t, SignAware(pos, unsigned))
	assert.False(t, SignAware(unsigned, neg))
}

func TestCoverage_MergesNetworksPerPair(t *testing.T) {
	records := []Record{
		{ID: "a1", Key: NewPairKey("X", "Y"), Networks: []string{"f"}},
		{ID: "a2", Key: NewPairKey("Y", "X"), Networks: []string{"g", "h"}},
		{ID: "a3", Key: NewPairKey("P", "Q"), Networks: []string{"f"}},
	}
	cov := Coverage(records)

	xy := cov[NewPairKey("X", "Y")]
	assert.Len(t, xy, 3)
	assert.Contains(t, xy, "f")
	assert.Contains(t, xy, "g")
	assert.Contains(t, xy, "h")
	assert.Len(t, cov[NewPairKey("P", "Q")], 1)
}
