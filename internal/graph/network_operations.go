package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Network Operations
// ============================================================================

// NetworkExists reports whether a network with the given name exists
func (r *Repository) NetworkExists(ctx context.Context, name string) (bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n:Network {name: $name})
		RETURN count(n) AS count
	`, map[string]interface{}{"name": name})
	if err != nil {
		return false, fmt.Errorf("failed to check network existence: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read network count: %w", err)
	}
	return getInt64FromRecord(record, "count") > 0, nil
}

// ListNetworks returns every network with its association count
func (r *Repository) ListNetworks(ctx context.Context) ([]NetworkInfo, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n:Network)
		OPTIONAL MATCH (a:Association)-[:PART_OF]->(n)
		RETURN n.name AS name,
		       n.level AS level,
		       n.derived_from AS derived_from,
		       count(a) AS associations
		ORDER BY name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	var networks []NetworkInfo
	for result.Next(ctx) {
		record := result.Record()
		networks = append(networks, NetworkInfo{
			Name:         getStringFromRecord(record, "name"),
			Level:        getStringFromRecord(record, "level"),
			DerivedFrom:  getStringFromRecord(record, "derived_from"),
			Associations: getInt64FromRecord(record, "associations"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read network records: %w", err)
	}
	return networks, nil
}

// ListSets returns every set with its operation metadata and link count
func (r *Repository) ListSets(ctx context.Context) ([]SetInfo, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (s:Set)
		OPTIONAL MATCH (a:Association)-[:IN_SET]->(s)
		RETURN s.name AS name,
		       s.operation AS operation,
		       s.networks AS networks,
		       s.fraction AS fraction,
		       count(a) AS associations
		ORDER BY name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}

	var sets []SetInfo
	for result.Next(ctx) {
		record := result.Record()
		sets = append(sets, SetInfo{
			Name:         getStringFromRecord(record, "name"),
			Operation:    getStringFromRecord(record, "operation"),
			Networks:     getStringSliceFromRecord(record, "networks"),
			Fraction:     getFloat64FromRecord(record, "fraction"),
			Associations: getInt64FromRecord(record, "associations"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read set records: %w", err)
	}
	return sets, nil
}

// GetNetworkStats reports edge/node counts and the sign breakdown
func (r *Repository) GetNetworkStats(ctx context.Context, name string) (*NetworkStats, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (a:Association)-[:PART_OF]->(:Network {name: $name})
		RETURN count(a) AS associations,
		       sum(CASE WHEN a.sign = 1 THEN 1 ELSE 0 END) AS positive,
		       sum(CASE WHEN a.sign = -1 THEN 1 ELSE 0 END) AS negative,
		       sum(CASE WHEN a.sign = 0 THEN 1 ELSE 0 END) AS neutral,
		       sum(CASE WHEN a.sign IS NULL THEN 1 ELSE 0 END) AS unsigned
	`, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to read network stats: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats record: %w", err)
	}

	stats := &NetworkStats{
		Name:         name,
		Associations: getInt64FromRecord(record, "associations"),
		Positive:     getInt64FromRecord(record, "positive"),
		Negative:     getInt64FromRecord(record, "negative"),
		Neutral:      getInt64FromRecord(record, "neutral"),
		Unsigned:     getInt64FromRecord(record, "unsigned"),
	}

	taxaResult, err := session.Run(ctx, `
		MATCH (a:Association)-[:PART_OF]->(:Network {name: $name})
		MATCH (a)-[:HAS_PARTICIPANT]->(t:Taxon)
		RETURN count(DISTINCT t) AS taxa
	`, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to count network taxa: %w", err)
	}
	taxaRecord, err := taxaResult.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxa count: %w", err)
	}
	stats.Taxa = getInt64FromRecord(taxaRecord, "taxa")

	return stats, nil
}

// DeleteNetwork detach-deletes a network and its associations, then
// removes synthetic taxa left without associations or provenance
// parents. Original taxa are never deleted, only unlinked.
func (r *Repository) DeleteNetwork(ctx context.Context, name string) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (n:Network {name: $name})
			OPTIONAL MATCH (a:Association)-[:PART_OF]->(n)
			DETACH DELETE a, n
		`, map[string]interface{}{"name": name})
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, cleanupOrphanedTaxa(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("failed to delete network %s: %w", name, err)
	}

	r.logger.Info("Network deleted",
		zap.String("network", name),
	)
	return nil
}

// cleanupOrphanedTaxa removes synthetic taxa that no association or
// provenance chain still references. Deleting one node can orphan its
// provenance children, so the delete repeats until it removes nothing.
func cleanupOrphanedTaxa(ctx context.Context, tx neo4j.ManagedTransaction) error {
	for {
		result, err := tx.Run(ctx, `
			MATCH (t:Taxon)
			WHERE t.synthetic = true
			  AND NOT (:Association)-[:HAS_PARTICIPANT]->(t)
			  AND NOT (:Taxon)-[:AGGLOMERATED]->(t)
			DETACH DELETE t
		`, nil)
		if err != nil {
			return err
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return err
		}
		if summary.Counters().NodesDeleted() == 0 {
			return nil
		}
	}
}

// CreateNetwork imports a named network with its associations, creating
// taxa and taxonomy label chains as needed. Used by the seed script and
// tests; bulk file import proper is owned by the surrounding tooling.
func (r *Repository) CreateNetwork(ctx context.Context, name string, assocs []ImportAssociation, lineages map[string]Lineage, levelOrder []string) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	taxonRows := make([]map[string]interface{}, 0, len(lineages))
	labelRows := make([]map[string]interface{}, 0)
	chainRows := make([]map[string]interface{}, 0)
	for taxon, lineage := range lineages {
		// Walk the lineage finest-first, linking the taxon to its
		// finest known label and chaining labels upward.
		var prevName, prevLevel string
		for _, level := range levelOrder {
			label, ok := lineage[level]
			if !ok || label == "" {
				continue
			}
			labelRows = append(labelRows, map[string]interface{}{
				"name": label, "level": level,
			})
			if prevName == "" {
				taxonRows = append(taxonRows, map[string]interface{}{
					"taxon": taxon, "label": label, "level": level,
				})
			} else {
				chainRows = append(chainRows, map[string]interface{}{
					"from_name": prevName, "from_level": prevLevel,
					"to_name": label, "to_level": level,
				})
			}
			prevName, prevLevel = label, level
		}
		if prevName == "" {
			taxonRows = append(taxonRows, map[string]interface{}{
				"taxon": taxon, "label": nil, "level": nil,
			})
		}
	}

	assocRows := make([]map[string]interface{}, 0, len(assocs))
	for i, a := range assocs {
		var sign interface{} = a.Sign
		assocRows = append(assocRows, map[string]interface{}{
			"id":     fmt.Sprintf("%s-%d", name, i),
			"t1":     a.Taxon1,
			"t2":     a.Taxon2,
			"sign":   sign,
			"weight": a.Weight,
		})
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if result, err := tx.Run(ctx, `
			MERGE (n:Network {name: $name})
			SET n.created_at = datetime($now)
		`, map[string]interface{}{"name": name, "now": now}); err != nil {
			return nil, err
		} else if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		for _, batch := range chunk(labelRows, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $rows AS row
				MERGE (:TaxonomyLabel {name: row.name, level: row.level})
			`, map[string]interface{}{"rows": batch}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		for _, batch := range chunk(chainRows, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $rows AS row
				MATCH (lo:TaxonomyLabel {name: row.from_name, level: row.from_level})
				MATCH (hi:TaxonomyLabel {name: row.to_name, level: row.to_level})
				MERGE (lo)-[:MEMBER_OF]->(hi)
			`, map[string]interface{}{"rows": batch}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		for _, batch := range chunk(taxonRows, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $rows AS row
				MERGE (t:Taxon {name: row.taxon})
				WITH t, row
				WHERE row.label IS NOT NULL
				MATCH (l:TaxonomyLabel {name: row.label, level: row.level})
				MERGE (t)-[:BELONGS_TO]->(l)
			`, map[string]interface{}{"rows": batch}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		for _, batch := range chunk(assocRows, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $rows AS row
				MATCH (n:Network {name: $name})
				MERGE (t1:Taxon {name: row.t1})
				MERGE (t2:Taxon {name: row.t2})
				CREATE (a:Association {id: row.id, sign: row.sign, weight: row.weight})
				CREATE (a)-[:HAS_PARTICIPANT]->(t1)
				CREATE (a)-[:HAS_PARTICIPANT]->(t2)
				CREATE (a)-[:PART_OF]->(n)
			`, map[string]interface{}{"rows": batch, "name": name}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}

	r.logger.Info("Network created",
		zap.String("network", name),
		zap.Int("associations", len(assocs)),
	)
	return nil
}

// TraceProvenance walks AGGLOMERATED chains from a taxon back to the
// original (non-synthetic) taxa it aggregates.
func (r *Repository) TraceProvenance(ctx context.Context, taxon string) ([]string, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (t:Taxon {name: $name})
		OPTIONAL MATCH (t)-[:AGGLOMERATED*0..]->(o:Taxon)
		WHERE NOT coalesce(o.synthetic, false)
		RETURN collect(DISTINCT o.name) AS originals
	`, map[string]interface{}{"name": taxon})
	if err != nil {
		return nil, fmt.Errorf("failed to trace provenance: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read provenance record: %w", err)
	}
	return getStringSliceFromRecord(record, "originals"), nil
}
