package match

// The resolver decides when two association records denote the same
// logical edge. Both engines share it: agglomeration matches endpoint
// pairs at a taxonomy level, set algebra matches raw endpoint pairs
// across networks.

// PairKey is an order-independent endpoint pair. A self-loop collapses
// to a degenerate pair with A == B, so callers must not assume two
// distinct partners.
type PairKey struct {
	A string
	B string
}

// NewPairKey builds the canonical key for two endpoint names
func NewPairKey(x, y string) PairKey {
	if y < x {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

// Record is one association as seen by the resolver: its canonical
// endpoint pair, its sign, and the networks it is directly linked to.
type Record struct {
	ID       string
	Key      PairKey
	Sign     int64
	HasSign  bool
	Networks []string
}

// Structural reports a structural match: same unordered endpoint pair,
// sign ignored.
func Structural(a, b Record) bool {
	return a.Key == b.Key
}

// SignAware reports a sign-aware match: structural match with
// identical sign. Two unsigned records match each other but never a
// signed one.
func SignAware(a, b Record) bool {
	if a.Key != b.Key {
		return false
	}
	if a.HasSign != b.HasSign {
		return false
	}
	return !a.HasSign || a.Sign == b.Sign
}

// Coverage maps each endpoint pair to the set of networks containing
// any association with that pair. The set algebra engine uses it to
// test threshold coverage for structural counterparts.
func Coverage(records []Record) map[PairKey]map[string]struct{} {
	cov := make(map[PairKey]map[string]struct{}, len(records))
	for _, rec := range records {
		nets := cov[rec.Key]
		if nets == nil {
			nets = make(map[string]struct{}, len(rec.Networks))
			cov[rec.Key] = nets
		}
		for _, n := range rec.Networks {
			nets[n] = struct{}{}
		}
	}
	return cov
}
