package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Batched Write Operations
// ============================================================================

// WriteDerivedNetwork materializes one agglomeration pass in a single
// transaction: any prior derived network of the same name is replaced,
// then the synthetic taxa, provenance links and associations are
// written in UNWIND batches. Returns the final association count.
func (r *Repository) WriteDerivedNetwork(ctx context.Context, derived DerivedNetwork) (int64, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	taxonRows := make([]map[string]interface{}, 0, len(derived.Taxa))
	for _, t := range derived.Taxa {
		taxonRows = append(taxonRows, map[string]interface{}{
			"name":  t.Name,
			"label": t.Label,
		})
	}

	provRows := make([]map[string]interface{}, 0, len(derived.Provenance))
	for _, p := range derived.Provenance {
		provRows = append(provRows, map[string]interface{}{
			"from": p.From,
			"to":   p.To,
		})
	}

	assocRows := make([]map[string]interface{}, 0, len(derived.Associations))
	for _, a := range derived.Associations {
		var sign interface{}
		if a.HasSign {
			sign = a.Sign
		}
		assocRows = append(assocRows, map[string]interface{}{
			"id":   a.ID,
			"t1":   a.Taxon1,
			"t2":   a.Taxon2,
			"sign": sign,
		})
	}

	count, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Re-running a pass overwrites its previous result.
		if result, err := tx.Run(ctx, `
			MATCH (n:Network {name: $name})
			OPTIONAL MATCH (a:Association)-[:PART_OF]->(n)
			DETACH DELETE a, n
		`, map[string]interface{}{"name": derived.Name}); err != nil {
			return nil, err
		} else if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		// Synthetic taxa from the replaced run may now be orphaned.
		if err := cleanupOrphanedTaxa(ctx, tx); err != nil {
			return nil, err
		}

		if result, err := tx.Run(ctx, `
			CREATE (n:Network {name: $name})
			SET n.derived_from = $source,
			    n.level = $level,
			    n.created_at = datetime($now)
		`, map[string]interface{}{
			"name":   derived.Name,
			"source": derived.DerivedFrom,
			"level":  derived.Level,
			"now":    now,
		}); err != nil {
			return nil, err
		} else if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		for _, batch := range chunk(taxonRows, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $rows AS row
				CREATE (t:Taxon {name: row.name, synthetic: true})
				MERGE (l:TaxonomyLabel {name: row.label, level: $level})
				CREATE (t)-[:BELONGS_TO]->(l)
			`, map[string]interface{}{"rows": batch, "level": derived.Level}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		for _, batch := range chunk(provRows, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $rows AS row
				MATCH (s:Taxon {name: row.from})
				MATCH (c:Taxon {name: row.to})
				MERGE (s)-[:AGGLOMERATED]->(c)
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
				MATCH (t1:Taxon {name: row.t1})
				MATCH (t2:Taxon {name: row.t2})
				CREATE (a:Association {id: row.id, sign: row.sign})
				CREATE (a)-[:HAS_PARTICIPANT]->(t1)
				CREATE (a)-[:HAS_PARTICIPANT]->(t2)
				CREATE (a)-[:PART_OF]->(n)
			`, map[string]interface{}{"rows": batch, "name": derived.Name}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		result, err := tx.Run(ctx, `
			MATCH (a:Association)-[:PART_OF]->(:Network {name: $name})
			RETURN count(a) AS count
		`, map[string]interface{}{"name": derived.Name})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return getInt64FromRecord(record, "count"), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write derived network %s: %w", derived.Name, err)
	}

	r.logger.Info("Derived network written",
		zap.String("network", derived.Name),
		zap.String("source", derived.DerivedFrom),
		zap.String("level", derived.Level),
		zap.Int("synthetic_taxa", len(derived.Taxa)),
		zap.Int64("associations", count.(int64)),
	)
	return count.(int64), nil
}

// WriteSet materializes a set-algebra result in a single transaction:
// detach-delete any prior set of the same name, create the set tagged
// with its operation and source networks, link every qualifying
// association, and count the links.
func (r *Repository) WriteSet(ctx context.Context, set SetResult) (int64, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	var fraction interface{}
	if set.HasFraction {
		fraction = set.Fraction
	}

	count, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if result, err := tx.Run(ctx, `
			MATCH (s:Set {name: $name})
			DETACH DELETE s
		`, map[string]interface{}{"name": set.Name}); err != nil {
			return nil, err
		} else if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		if result, err := tx.Run(ctx, `
			CREATE (s:Set {name: $name})
			SET s.operation = $operation,
			    s.networks = $networks,
			    s.fraction = $fraction,
			    s.created_at = datetime($now)
		`, map[string]interface{}{
			"name":      set.Name,
			"operation": set.Operation,
			"networks":  set.Networks,
			"fraction":  fraction,
			"now":       now,
		}); err != nil {
			return nil, err
		} else if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		for _, batch := range chunk(set.Associations, r.batchSize) {
			if result, err := tx.Run(ctx, `
				UNWIND $ids AS id
				MATCH (s:Set {name: $name})
				MATCH (a:Association {id: id})
				MERGE (a)-[:IN_SET]->(s)
			`, map[string]interface{}{"ids": batch, "name": set.Name}); err != nil {
				return nil, err
			} else if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		result, err := tx.Run(ctx, `
			MATCH (a:Association)-[:IN_SET]->(:Set {name: $name})
			RETURN count(a) AS count
		`, map[string]interface{}{"name": set.Name})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return getInt64FromRecord(record, "count"), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write set %s: %w", set.Name, err)
	}

	r.logger.Info("Set written",
		zap.String("set", set.Name),
		zap.String("operation", set.Operation),
		zap.Strings("networks", set.Networks),
		zap.Int64("associations", count.(int64)),
	)
	return count.(int64), nil
}
