package setalgebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micronet/internal/match"
)

func rec(id string, t1, t2 string, sign int64, networks ...string) match.Record {
	return match.Record{
		ID:       id,
		Key:      match.NewPairKey(t1, t2),
		Sign:     sign,
		HasSign:  true,
		Networks: networks,
	}
}

func TestUnionIDs(t *testing.T) {
	ids := unionIDs([]match.Record{
		rec("a1", "X", "Y", 1, "f"),
		rec("a2", "P", "Q", -1, "g"),
		rec("a3", "X", "Z", 1, "g"),
	})
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, ids)
}

func TestIntersection_SharedRecordOnly_SignAware(t *testing.T) {
	// structural counterparts but no record linked to both networks:
	// sign-aware full intersection is empty
	records := []match.Record{
		rec("f1", "X", "Y", -1, "f"),
		rec("g1", "X", "Y", 1, "g"),
	}
	ids := intersectionIDs(records, []string{"f", "g"}, 2, true)
	assert.Empty(t, ids)
}

func TestIntersection_SharedRecordQualifies(t *testing.T) {
	records := []match.Record{
		rec("shared", "X", "Y", 1, "f", "g"),
		rec("only-f", "P", "Q", 1, "f"),
	}
	ids := intersectionIDs(records, []string{"f", "g"}, 2, true)
	assert.Equal(t, []string{"shared"}, ids)
}

func TestIntersection_StructuralCounterparts(t *testing.T) {
	// same endpoint pair in both networks qualifies both records in
	// structural mode, signs notwithstanding
	records := []match.Record{
		rec("f1", "X", "Y", -1, "f"),
		rec("g1", "X", "Y", 1, "g"),
		rec("f2", "P", "Q", 1, "f"),
	}
	ids := intersectionIDs(records, []string{"f", "g"}, 2, false)
	assert.ElementsMatch(t, []string{"f1", "g1"}, ids)
}

func TestIntersection_FractionalCombinations(t *testing.T) {
	// n=2 over three networks: any pair of networks covering the
	// endpoint pair qualifies
	records := []match.Record{
		rec("f1", "X", "Y", 1, "f"),
		rec("g1", "X", "Y", 1, "g"),
		rec("h1", "P", "Q", 1, "h"),
	}
	ids := intersectionIDs(records, []string{"f", "g", "h"}, 2, false)
	assert.ElementsMatch(t, []string{"f1", "g1"}, ids)
}

func TestDifference_UniqueAssociationsSurvive(t *testing.T) {
	records := []match.Record{
		rec("f1", "A", "B", 1, "f"),
		rec("g1", "C", "D", -1, "g"),
	}
	ids := differenceIDs(records, []string{"f", "g"})
	assert.ElementsMatch(t, []string{"f1", "g1"}, ids)
}

func TestDifference_ConflictingSignCounterpartExcluded(t *testing.T) {
	// X-Y appears in f with -1 and in g with +1: neither record is
	// unique, while P-Q in f alone survives
	records := []match.Record{
		rec("f1", "X", "Y", -1, "f"),
		rec("g1", "X", "Y", 1, "g"),
		rec("f2", "P", "Q", 1, "f"),
	}
	ids := differenceIDs(records, []string{"f", "g"})
	assert.Equal(t, []string{"f2"}, ids)
}

func TestDifference_SharedRecordExcluded(t *testing.T) {
	records := []match.Record{
		rec("shared", "X", "Y", 1, "f", "g"),
	}
	ids := differenceIDs(records, []string{"f", "g"})
	assert.Empty(t, ids)
}

func TestDifference_SelfLoopCounterpart(t *testing.T) {
	// degenerate pairs compare like any other endpoint pair
	records := []match.Record{
		rec("f1", "X", "X", 1, "f"),
		rec("g1", "X", "X", -1, "g"),
	}
	ids := differenceIDs(records, []string{"f", "g"})
	assert.Empty(t, ids)
}

func TestCombinations(t *testing.T) {
	combos := combinations([]string{"f", "g", "h"}, 2)
	require.Len(t, combos, 3)
	assert.ElementsMatch(t, [][]string{
		{"f", "g"}, {"f", "h"}, {"g", "h"},
	}, combos)

	assert.Len(t, combinations([]string{"f", "g"}, 2), 1)
	assert.Nil(t, combinations([]string{"f"}, 2))
}

func TestSetName_DeterministicAndOrderIndependent(t *testing.T) {
	a := setName("difference", []string{"g", "f"}, 0, false)
	b := setName("difference", []string{"f", "g"}, 0, false)
	assert.Equal(t, a, b)
	assert.Equal(t, "difference_f_g", a)

	c := setName("intersection", []string{"g", "f"}, 0.5, true)
	assert.Equal(t, "intersection_0.50_f_g", c)
}
