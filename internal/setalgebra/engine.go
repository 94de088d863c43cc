package setalgebra

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"micronet/internal/graph"
	"micronet/pkg/errors"
	"micronet/pkg/logger"
)

// Engine computes set algebra over collections of stored associations
// and materializes the results as named Sets. The read side is
// side-effect-free; only the final materialization writes, as a single
// transactional unit.
type Engine struct {
	repo   *graph.Repository
	logger *zap.Logger
}

// NewEngine creates a set algebra engine
func NewEngine(repo *graph.Repository) *Engine {
	return &Engine{
		repo:   repo,
		logger: logger.Named("setalgebra"),
	}
}

// Union materializes the set of every association linked to any of the
// given networks.
func (e *Engine) Union(ctx context.Context, networks []string) (*graph.SetInfo, error) {
	if err := validateNetworks(networks); err != nil {
		return nil, err
	}

	records, err := e.repo.LoadMemberships(ctx, networks)
	if err != nil {
		return nil, err
	}

	return e.materialize(ctx, graph.SetResult{
		Name:         setName("union", networks, 0, false),
		Operation:    "union",
		Networks:     sortedCopy(networks),
		Associations: unionIDs(records),
	})
}

// Intersection materializes the set of associations present in at
// least round(len(networks)*fraction) of the given networks. A
// threshold of one or fewer networks is rejected before any store
// interaction.
func (e *Engine) Intersection(ctx context.Context, networks []string, fraction float64, useWeight bool) (*graph.SetInfo, error) {
	if err := validateNetworks(networks); err != nil {
		return nil, err
	}
	if fraction <= 0 || fraction > 1 {
		return nil, errors.NewInvalidParameter("fraction", "must be in (0,1]")
	}

	n := int(math.Round(float64(len(networks)) * fraction))
	if n <= 1 {
		e.logger.Warn("Intersection threshold too low, nothing to do",
			zap.Strings("networks", networks),
			zap.Float64("fraction", fraction),
			zap.Int("threshold", n),
		)
		return nil, errors.NewInvalidParameter("fraction", "threshold must cover more than one network")
	}

	records, err := e.repo.LoadMemberships(ctx, networks)
	if err != nil {
		return nil, err
	}

	return e.materialize(ctx, graph.SetResult{
		Name:         setName("intersection", networks, fraction, true),
		Operation:    "intersection",
		Networks:     sortedCopy(networks),
		Fraction:     fraction,
		HasFraction:  true,
		Associations: intersectionIDs(records, networks, n, useWeight),
	})
}

// Difference materializes the set of associations unique to one of the
// given networks. The useWeight flag names the sign-aware reading; both
// readings exclude any association with a structural counterpart in a
// different network, conflicting signs included.
func (e *Engine) Difference(ctx context.Context, networks []string, useWeight bool) (*graph.SetInfo, error) {
	if err := validateNetworks(networks); err != nil {
		return nil, err
	}

	records, err := e.repo.LoadMemberships(ctx, networks)
	if err != nil {
		return nil, err
	}

	return e.materialize(ctx, graph.SetResult{
		Name:         setName("difference", networks, 0, false),
		Operation:    "difference",
		Networks:     sortedCopy(networks),
		Associations: differenceIDs(records, networks),
	})
}

func (e *Engine) materialize(ctx context.Context, result graph.SetResult) (*graph.SetInfo, error) {
	count, err := e.repo.WriteSet(ctx, result)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		e.logger.Info("Set operation produced an empty set",
			zap.String("set", result.Name),
			zap.String("operation", result.Operation),
		)
	}

	return &graph.SetInfo{
		Name:         result.Name,
		Operation:    result.Operation,
		Networks:     result.Networks,
		Fraction:     result.Fraction,
		Associations: count,
	}, nil
}

func validateNetworks(networks []string) error {
	if len(networks) == 0 {
		return errors.NewInvalidParameter("networks", "at least one network is required")
	}
	for _, n := range networks {
		if n == "" {
			return errors.NewInvalidParameter("networks", "network names must be non-empty")
		}
	}
	return nil
}

func sortedCopy(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	sort.Strings(out)
	return out
}
