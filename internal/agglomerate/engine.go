package agglomerate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"micronet/internal/graph"
	"micronet/internal/locks"
	"micronet/internal/taxonomy"
	"micronet/pkg/errors"
	"micronet/pkg/logger"
)

// Engine runs taxonomic edge agglomeration passes against the store
type Engine struct {
	repo          *graph.Repository
	locker        locks.Locker
	logger        *zap.Logger
	maxIterations int
}

// NewEngine creates an agglomeration engine
func NewEngine(repo *graph.Repository, locker locks.Locker, maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = 10000
	}
	return &Engine{
		repo:          repo,
		locker:        locker,
		logger:        logger.Named("agglomerate"),
		maxIterations: maxIterations,
	}
}

// Result reports the outcome of one network's pass. A pass that found
// no mergeable pairs is Skipped with no derived network; a pass that
// failed carries Error and leaves the store untouched for that network.
type Result struct {
	Network      string `json:"network"`
	Source       string `json:"source,omitempty"`
	Derived      string `json:"derived,omitempty"`
	Skipped      bool   `json:"skipped"`
	Associations int64  `json:"associations"`
	Error        string `json:"error,omitempty"`
}

// Agglomerate runs one pass per network at the given level. Passes on
// disjoint networks run in parallel; each holds the advisory lock for
// its network family for the duration. A failure in one network's pass
// is reported in its Result and does not abort the others.
func (e *Engine) Agglomerate(ctx context.Context, networks []string, level taxonomy.Level, useWeight bool) ([]Result, error) {
	if len(networks) == 0 {
		return nil, errors.NewInvalidParameter("networks", "at least one network is required")
	}

	results := make([]Result, len(networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, network := range networks {
		i, network := i, network
		g.Go(func() error {
			result := e.agglomerateOne(gctx, network, level, useWeight)
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) agglomerateOne(ctx context.Context, network string, level taxonomy.Level, useWeight bool) Result {
	base := taxonomy.BaseName(network)
	result := Result{Network: network}

	release, err := e.locker.Acquire(ctx, base)
	if err != nil {
		e.logger.Error("Failed to acquire network lock",
			zap.String("network", network),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}
	defer release()

	source, err := e.resolveSource(ctx, base, network, level)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Source = source

	records, err := e.repo.LoadSubgraph(ctx, source, string(level))
	if err != nil {
		e.logger.Error("Agglomeration pass aborted",
			zap.String("network", network),
			zap.String("source", source),
			zap.String("level", string(level)),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}

	if len(records) == 0 {
		e.logger.Info("Nothing to agglomerate",
			zap.String("source", source),
			zap.String("level", string(level)),
		)
		result.Skipped = true
		return result
	}

	ar := newArena(records, string(level), useWeight)
	if ar.unlabeled > 0 {
		// discontinuous classification chains: those taxa can never
		// match at this level and are carried through unmerged
		e.logger.Warn("Taxa without a label at this level",
			zap.String("source", source),
			zap.String("level", string(level)),
			zap.Int("taxa", ar.unlabeled),
		)
	}

	// checked before anything is written: a network with no matching
	// pairs yields no derived network at all
	if !ar.hasMatchingPair() {
		e.logger.Info("No matching association pairs, skipping network",
			zap.String("source", source),
			zap.String("level", string(level)),
		)
		result.Skipped = true
		return result
	}

	if err := ar.pairMergeLoop(e.maxIterations); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := ar.taxonMergeLoop(e.maxIterations); err != nil {
		result.Error = err.Error()
		return result
	}

	derivedName := level.DerivedName(base)
	count, err := e.repo.WriteDerivedNetwork(ctx, ar.payload(derivedName, source))
	if err != nil {
		e.logger.Error("Failed to write derived network",
			zap.String("derived", derivedName),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}

	result.Derived = derivedName
	result.Associations = count
	e.logger.Info("Agglomeration pass complete",
		zap.String("source", source),
		zap.String("derived", derivedName),
		zap.String("level", string(level)),
		zap.Int("taxa", ar.distinctTaxa()),
		zap.Int64("associations", count),
	)
	return result
}

// resolveSource prefers the derived network from the immediately lower
// level, matched by naming convention, over the base network.
func (e *Engine) resolveSource(ctx context.Context, base, network string, level taxonomy.Level) (string, error) {
	if below, ok := level.Below(); ok {
		lower := below.DerivedName(base)
		exists, err := e.repo.NetworkExists(ctx, lower)
		if err != nil {
			return "", fmt.Errorf("failed to resolve source network: %w", err)
		}
		if exists {
			return lower, nil
		}
	}
	return network, nil
}
