package graph

import (
	"context"
	"fmt"

	"micronet/internal/match"
	"micronet/pkg/errors"
)

// ============================================================================
// Subgraph Loading
// ============================================================================

// LoadSubgraph reads every association of a network with both endpoints
// resolved and each endpoint's taxonomy label at the given level. The
// engines run their merge loops against this in-memory snapshot instead
// of re-querying the store after every merge.
//
// An association whose participants cannot be resolved to one or two
// taxa is a consistency error, never silently skipped.
func (r *Repository) LoadSubgraph(ctx context.Context, network, level string) ([]AssociationRecord, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (a:Association)-[:PART_OF]->(:Network {name: $network})
		OPTIONAL MATCH (a)-[r:HAS_PARTICIPANT]->(t:Taxon)
		OPTIONAL MATCH (t)-[:BELONGS_TO]->(:TaxonomyLabel)-[:MEMBER_OF*0..]->(l:TaxonomyLabel {level: $level})
		RETURN a.id AS id,
		       a.sign AS sign,
		       count(DISTINCT r) AS links,
		       collect({taxon: t.name, synthetic: coalesce(t.synthetic, false), label: l.name}) AS participants
	`, map[string]interface{}{"network": network, "level": level})
	if err != nil {
		return nil, fmt.Errorf("failed to load subgraph of %s: %w", network, err)
	}

	var records []AssociationRecord
	for result.Next(ctx) {
		record := result.Record()
		id := getStringFromRecord(record, "id")
		sign, hasSign := getOptionalInt64FromRecord(record, "sign")

		raw, _ := record.Get("participants")
		participants, err := parseParticipants(id, raw, getInt64FromRecord(record, "links"))
		if err != nil {
			return nil, err
		}

		records = append(records, AssociationRecord{
			ID:           id,
			Sign:         sign,
			HasSign:      hasSign,
			Participants: participants,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subgraph records: %w", err)
	}
	return records, nil
}

// parseParticipants turns the collected endpoint maps into exactly two
// participants. The relationship count disambiguates a self-loop (two
// links to one taxon, collapsing to one distinct endpoint) from a
// dangling association whose other endpoint was deleted: anything but
// two links is a dangling reference, never a degenerate pair.
func parseParticipants(assocID string, raw interface{}, links int64) ([2]Participant, error) {
	var out [2]Participant

	if links != 2 {
		return out, errors.NewIntegrityViolation("association", assocID,
			fmt.Sprintf("has %d participant links", links))
	}

	list, ok := raw.([]interface{})
	if !ok {
		return out, errors.NewIntegrityViolation("association", assocID, "participants unreadable")
	}

	var parsed []Participant
	seen := make(map[string]bool)
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		taxon := getStringFromMap(m, "taxon", "")
		if taxon == "" {
			continue
		}
		label := getStringFromMap(m, "label", "")
		p := Participant{
			Taxon:     taxon,
			Synthetic: getBoolFromMap(m, "synthetic", false),
			Label:     label,
			HasLabel:  label != "",
		}
		// a discontinuous label chain can fan out the collect row;
		// keep the labeled variant when both appear
		if seen[taxon] {
			for i := range parsed {
				if parsed[i].Taxon == taxon && !parsed[i].HasLabel && p.HasLabel {
					parsed[i] = p
				}
			}
			continue
		}
		seen[taxon] = true
		parsed = append(parsed, p)
	}

	switch len(parsed) {
	case 1:
		out[0], out[1] = parsed[0], parsed[0]
	case 2:
		out[0], out[1] = parsed[0], parsed[1]
	default:
		return out, errors.NewIntegrityViolation("association", assocID,
			fmt.Sprintf("resolved %d distinct participants", len(parsed)))
	}
	return out, nil
}

// LoadMemberships reads every association linked to any of the given
// networks as resolver records: canonical endpoint pair, sign, and the
// networks each record is directly linked to. Unknown network names
// simply contribute no rows.
func (r *Repository) LoadMemberships(ctx context.Context, networks []string) ([]match.Record, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (a:Association)-[:PART_OF]->(n:Network)
		WHERE n.name IN $networks
		WITH a, collect(DISTINCT n.name) AS networks
		OPTIONAL MATCH (a)-[:HAS_PARTICIPANT]->(t:Taxon)
		RETURN a.id AS id,
		       a.sign AS sign,
		       networks,
		       collect(t.name) AS taxa
	`, map[string]interface{}{"networks": networks})
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}

	var records []match.Record
	for result.Next(ctx) {
		record := result.Record()
		id := getStringFromRecord(record, "id")
		taxa := getStringSliceFromRecord(record, "taxa")

		// one name per HAS_PARTICIPANT link; a self-loop shows up as
		// the same name twice, a dangling association as a single name
		if len(taxa) != 2 {
			return nil, errors.NewIntegrityViolation("association", id,
				fmt.Sprintf("has %d participant links", len(taxa)))
		}
		key := match.NewPairKey(taxa[0], taxa[1])

		sign, hasSign := getOptionalInt64FromRecord(record, "sign")
		records = append(records, match.Record{
			ID:       id,
			Key:      key,
			Sign:     sign,
			HasSign:  hasSign,
			Networks: getStringSliceFromRecord(record, "networks"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read membership records: %w", err)
	}
	return records, nil
}
