package agglomerate

import (
	"github.com/google/uuid"

	"micronet/internal/graph"
	"micronet/internal/match"
	"micronet/pkg/errors"
)

// The arena is an in-memory copy of one network's subgraph. Both merge
// loops run purely against it and the final state is flushed back to
// the store in one batched write, so the store never sees a
// half-finished pass and termination does not depend on query ordering.

type taxon struct {
	name      string
	label     string
	hasLabel  bool
	synthetic bool
	created   bool  // synthesized during this pass
	children  []int // direct replacements, created taxa only
}

type assoc struct {
	id      string
	a, b    int // taxon indices; a == b is a self-loop
	sign    int64
	hasSign bool
	alive   bool
}

type arena struct {
	level     string
	useWeight bool
	taxa      []taxon
	index     map[string]int
	assocs    []assoc
	unlabeled int // taxa with no label path to the level
}

// newArena copies a loaded subgraph into the arena. Every association
// gets a fresh id and keeps only its sign, implementing the
// copy-on-write step: the source network is never touched.
func newArena(records []graph.AssociationRecord, level string, useWeight bool) *arena {
	ar := &arena{
		level:     level,
		useWeight: useWeight,
		index:     make(map[string]int),
	}
	for _, rec := range records {
		a := ar.internTaxon(rec.Participants[0])
		b := ar.internTaxon(rec.Participants[1])
		ar.assocs = append(ar.assocs, assoc{
			id:      uuid.NewString(),
			a:       a,
			b:       b,
			sign:    rec.Sign,
			hasSign: rec.HasSign,
			alive:   true,
		})
	}
	return ar
}

func (ar *arena) internTaxon(p graph.Participant) int {
	if idx, ok := ar.index[p.Taxon]; ok {
		return idx
	}
	idx := len(ar.taxa)
	ar.taxa = append(ar.taxa, taxon{
		name:      p.Taxon,
		label:     p.Label,
		hasLabel:  p.HasLabel,
		synthetic: p.Synthetic,
	})
	ar.index[p.Taxon] = idx
	if !p.HasLabel {
		ar.unlabeled++
	}
	return idx
}

func (ar *arena) newSynthetic(label string, children []int) int {
	idx := len(ar.taxa)
	ar.taxa = append(ar.taxa, taxon{
		name:      uuid.NewString(),
		label:     label,
		hasLabel:  true,
		synthetic: true,
		created:   true,
		children:  children,
	})
	return idx
}

// sameLabel reports whether two taxa share a label at the arena level.
// A taxon with a discontinuous classification chain never matches.
func (ar *arena) sameLabel(i, j int) bool {
	ti, tj := &ar.taxa[i], &ar.taxa[j]
	return ti.hasLabel && tj.hasLabel && ti.label == tj.label
}

// ============================================================================
// Pair merging (association level)
// ============================================================================

// pairMatches reports whether two distinct associations merge at the
// arena level, and if so which orientation pairs their sides: false
// pairs (x.a,y.a)/(x.b,y.b), true pairs (x.a,y.b)/(x.b,y.a).
func (ar *arena) pairMatches(x, y *assoc) (swapped, ok bool) {
	xa, xb := &ar.taxa[x.a], &ar.taxa[x.b]
	ya, yb := &ar.taxa[y.a], &ar.taxa[y.b]
	if !xa.hasLabel || !xb.hasLabel || !ya.hasLabel || !yb.hasLabel {
		return false, false
	}

	xr := match.Record{Key: match.NewPairKey(xa.label, xb.label), Sign: x.sign, HasSign: x.hasSign}
	yr := match.Record{Key: match.NewPairKey(ya.label, yb.label), Sign: y.sign, HasSign: y.hasSign}
	if ar.useWeight {
		if !match.SignAware(xr, yr) {
			return false, false
		}
	} else if !match.Structural(xr, yr) {
		return false, false
	}

	// equal keys mean the label multisets agree, so the orientation is
	// direct exactly when the a-sides carry the same label
	if xa.label == ya.label && xb.label == yb.label {
		return false, true
	}
	return true, true
}

func (ar *arena) findPair() (xi, yi int, swapped, ok bool) {
	for i := range ar.assocs {
		if !ar.assocs[i].alive {
			continue
		}
		for j := i + 1; j < len(ar.assocs); j++ {
			if !ar.assocs[j].alive {
				continue
			}
			if sw, match := ar.pairMatches(&ar.assocs[i], &ar.assocs[j]); match {
				return i, j, sw, true
			}
		}
	}
	return 0, 0, false, false
}

// hasMatchingPair is the pre-copy check: a network with no mergeable
// association pair at this level produces no derived network at all.
func (ar *arena) hasMatchingPair() bool {
	_, _, _, ok := ar.findPair()
	return ok
}

// mergePair replaces two matching associations with one association
// between two fresh synthetic taxa, one per side. The replacement is
// created before the originals are dropped.
func (ar *arena) mergePair(xi, yi int, swapped bool) {
	x, y := ar.assocs[xi], ar.assocs[yi]

	ya, yb := y.a, y.b
	if swapped {
		ya, yb = yb, ya
	}

	s1 := ar.newSynthetic(ar.taxa[x.a].label, dedupIndices(x.a, ya))
	s2 := ar.newSynthetic(ar.taxa[x.b].label, dedupIndices(x.b, yb))

	merged := assoc{
		id:    uuid.NewString(),
		a:     s1,
		b:     s2,
		alive: true,
	}
	if ar.useWeight {
		merged.sign = x.sign
		merged.hasSign = x.hasSign
	}
	ar.assocs = append(ar.assocs, merged)

	ar.assocs[xi].alive = false
	ar.assocs[yi].alive = false
}

func dedupIndices(a, b int) []int {
	if a == b {
		return []int{a}
	}
	return []int{a, b}
}

// pairMergeLoop merges association pairs until none remain. Each merge
// removes two associations and adds one, so the loop terminates; the
// cap guards taxonomy data that would otherwise run away.
func (ar *arena) pairMergeLoop(maxIterations int) error {
	for iter := 0; ; iter++ {
		if iter >= maxIterations {
			return errors.NewInvalidParameter("max_merge_iterations",
				"pair merge loop exceeded the configured iteration cap")
		}
		xi, yi, swapped, ok := ar.findPair()
		if !ok {
			return nil
		}
		ar.mergePair(xi, yi, swapped)
	}
}

// ============================================================================
// Taxon merging (node level)
// ============================================================================

// incident returns the alive associations touching a taxon
func (ar *arena) incident(ti int) []int {
	var out []int
	for i := range ar.assocs {
		if !ar.assocs[i].alive {
			continue
		}
		if ar.assocs[i].a == ti || ar.assocs[i].b == ti {
			out = append(out, i)
		}
	}
	return out
}

// findTaxonPair looks for two distinct taxa that share a label at the
// arena level but are reached via different associations. Two taxa
// whose only connection is being the two ends of one association are
// not a pair.
func (ar *arena) findTaxonPair() (int, int, bool) {
	attached := ar.attachedTaxa()
	for ii := 0; ii < len(attached); ii++ {
		for jj := ii + 1; jj < len(attached); jj++ {
			i, j := attached[ii], attached[jj]
			if !ar.sameLabel(i, j) {
				continue
			}
			ai, aj := ar.incident(i), ar.incident(j)
			if len(ai) == 1 && len(aj) == 1 && ai[0] == aj[0] {
				continue
			}
			return i, j, true
		}
	}
	return 0, 0, false
}

// attachedTaxa returns taxa that still participate in the network
func (ar *arena) attachedTaxa() []int {
	seen := make(map[int]bool)
	var out []int
	for i := range ar.assocs {
		if !ar.assocs[i].alive {
			continue
		}
		for _, ti := range []int{ar.assocs[i].a, ar.assocs[i].b} {
			if !seen[ti] {
				seen[ti] = true
				out = append(out, ti)
			}
		}
	}
	return out
}

// mergeTaxa collapses two same-label taxa into one synthetic taxon and
// rewires every incident association onto it. Rewiring can leave two
// associations with the same partner: same-sign duplicates collapse to
// one, conflicting signs stay separate as genuinely different
// relationships.
func (ar *arena) mergeTaxa(i, j int) {
	s := ar.newSynthetic(ar.taxa[i].label, []int{i, j})

	for k := range ar.assocs {
		if !ar.assocs[k].alive {
			continue
		}
		if ar.assocs[k].a == i || ar.assocs[k].a == j {
			ar.assocs[k].a = s
		}
		if ar.assocs[k].b == i || ar.assocs[k].b == j {
			ar.assocs[k].b = s
		}
	}

	// duplicate detection among the rewired associations
	type dupKey struct {
		partner int
		sign    int64
		hasSign bool
	}
	kept := make(map[dupKey]bool)
	for k := range ar.assocs {
		if !ar.assocs[k].alive {
			continue
		}
		if ar.assocs[k].a != s && ar.assocs[k].b != s {
			continue
		}
		partner := ar.assocs[k].a
		if partner == s {
			partner = ar.assocs[k].b
		}
		key := dupKey{partner: partner, sign: ar.assocs[k].sign, hasSign: ar.assocs[k].hasSign}
		if kept[key] {
			ar.assocs[k].alive = false
			continue
		}
		kept[key] = true
	}
}

// taxonMergeLoop merges same-label taxon pairs until none remain. Each
// merge nets one fewer attached taxon, so the loop terminates.
func (ar *arena) taxonMergeLoop(maxIterations int) error {
	for iter := 0; ; iter++ {
		if iter >= maxIterations {
			return errors.NewInvalidParameter("max_merge_iterations",
				"taxon merge loop exceeded the configured iteration cap")
		}
		i, j, ok := ar.findTaxonPair()
		if !ok {
			return nil
		}
		ar.mergeTaxa(i, j)
	}
}

// ============================================================================
// Flush extraction
// ============================================================================

// payload extracts the final arena state as a store write. Synthetic
// taxa that were themselves merged away before the flush are compressed
// out of the provenance chains: their parents link straight through to
// the taxa they replaced, which keeps every chain terminating at nodes
// that exist in the store.
func (ar *arena) payload(name, source string) graph.DerivedNetwork {
	derived := graph.DerivedNetwork{
		Name:        name,
		DerivedFrom: source,
		Level:       ar.level,
	}

	persisted := make(map[int]bool)
	for i := range ar.assocs {
		if !ar.assocs[i].alive {
			continue
		}
		for _, ti := range []int{ar.assocs[i].a, ar.assocs[i].b} {
			if ar.taxa[ti].created {
				persisted[ti] = true
			}
		}
	}

	var resolve func(ti int) []int
	resolve = func(ti int) []int {
		if !ar.taxa[ti].created || persisted[ti] {
			return []int{ti}
		}
		var out []int
		for _, ch := range ar.taxa[ti].children {
			out = append(out, resolve(ch)...)
		}
		return out
	}

	for ti := range ar.taxa {
		if !persisted[ti] {
			continue
		}
		derived.Taxa = append(derived.Taxa, graph.SyntheticTaxon{
			Name:  ar.taxa[ti].name,
			Label: ar.taxa[ti].label,
		})
		seen := make(map[int]bool)
		for _, ch := range ar.taxa[ti].children {
			for _, target := range resolve(ch) {
				if seen[target] {
					continue
				}
				seen[target] = true
				derived.Provenance = append(derived.Provenance, graph.ProvenanceLink{
					From: ar.taxa[ti].name,
					To:   ar.taxa[target].name,
				})
			}
		}
	}

	for i := range ar.assocs {
		if !ar.assocs[i].alive {
			continue
		}
		derived.Associations = append(derived.Associations, graph.DerivedAssociation{
			ID:      ar.assocs[i].id,
			Taxon1:  ar.taxa[ar.assocs[i].a].name,
			Taxon2:  ar.taxa[ar.assocs[i].b].name,
			Sign:    ar.assocs[i].sign,
			HasSign: ar.assocs[i].hasSign,
		})
	}

	return derived
}

// distinctTaxa counts the taxa still attached to the network
func (ar *arena) distinctTaxa() int {
	return len(ar.attachedTaxa())
}

// aliveAssociations counts the associations still in the network
func (ar *arena) aliveAssociations() int {
	n := 0
	for i := range ar.assocs {
		if ar.assocs[i].alive {
			n++
		}
	}
	return n
}
