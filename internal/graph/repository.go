package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"micronet/pkg/logger"
)

// Repository handles all Neo4j database operations
type Repository struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
	logger    *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, database string, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Repository{
		driver:    driver,
		database:  database,
		batchSize: batchSize,
		logger:    logger.Named("graph"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) readSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})
}

func (r *Repository) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: r.database,
	})
}

// EnsureSchema creates the uniqueness constraints the engines rely on.
// Best-effort: a failure is logged and startup continues, matching the
// behavior on stores where the user lacks schema privileges.
func (r *Repository) EnsureSchema(ctx context.Context) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT taxon_name_unique IF NOT EXISTS FOR (t:Taxon) REQUIRE t.name IS UNIQUE`,
		`CREATE CONSTRAINT association_id_unique IF NOT EXISTS FOR (a:Association) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT network_name_unique IF NOT EXISTS FOR (n:Network) REQUIRE n.name IS UNIQUE`,
		`CREATE CONSTRAINT set_name_unique IF NOT EXISTS FOR (s:Set) REQUIRE s.name IS UNIQUE`,
	}
	for _, stmt := range stmts {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			r.logger.Warn("Schema init failed (continuing)", zap.Error(err))
			continue
		}
		_, _ = result.Consume(ctx)
	}
}

// chunk splits rows into batches bounded by the configured batch size
func chunk[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = 500
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
