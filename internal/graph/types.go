package graph

// ============================================================================
// Graph Types
// ============================================================================

// NetworkInfo summarizes one named network
type NetworkInfo struct {
	Name         string `json:"name"`
	Level        string `json:"level,omitempty"`
	DerivedFrom  string `json:"derived_from,omitempty"`
	Associations int64  `json:"associations"`
}

// SetInfo summarizes one named set and the operation that produced it
type SetInfo struct {
	Name         string   `json:"name"`
	Operation    string   `json:"operation"`
	Networks     []string `json:"networks"`
	Fraction     float64  `json:"fraction,omitempty"`
	Associations int64    `json:"associations"`
}

// NetworkStats reports edge and node counts for one network
type NetworkStats struct {
	Name         string `json:"name"`
	Associations int64  `json:"associations"`
	Taxa         int64  `json:"taxa"`
	Positive     int64  `json:"positive"`
	Negative     int64  `json:"negative"`
	Neutral      int64  `json:"neutral"`
	Unsigned     int64  `json:"unsigned"`
}

// Participant is one endpoint of an association, with its label at the
// level a subgraph was loaded for. HasLabel is false when the taxon's
// classification chain has no path to that level.
type Participant struct {
	Taxon     string
	Synthetic bool
	Label     string
	HasLabel  bool
}

// AssociationRecord is one association loaded from the store with both
// endpoints resolved. A self-loop carries the same participant twice.
type AssociationRecord struct {
	ID           string
	Sign         int64
	HasSign      bool
	Participants [2]Participant
}

// ImportAssociation is one association to write during network import
type ImportAssociation struct {
	Taxon1 string
	Taxon2 string
	Sign   int64
	Weight float64
}

// Lineage maps taxonomy level names to label values for one taxon,
// finest known level first in Chain order.
type Lineage map[string]string

// SyntheticTaxon is one aggregate node created by agglomeration
type SyntheticTaxon struct {
	Name  string
	Label string
}

// ProvenanceLink records that a synthetic taxon replaces another taxon
type ProvenanceLink struct {
	From string
	To   string
}

// DerivedAssociation is one association to write into a derived network
type DerivedAssociation struct {
	ID      string
	Taxon1  string
	Taxon2  string
	Sign    int64
	HasSign bool
}

// DerivedNetwork is the complete flush payload for one agglomeration
// pass: network metadata plus everything the pass created.
type DerivedNetwork struct {
	Name         string
	DerivedFrom  string
	Level        string
	Taxa         []SyntheticTaxon
	Provenance   []ProvenanceLink
	Associations []DerivedAssociation
}

// SetResult is the materialization payload for one set operation
type SetResult struct {
	Name         string
	Operation    string
	Networks     []string
	Fraction     float64
	HasFraction  bool
	Associations []string
}
