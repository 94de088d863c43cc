package setalgebra

import (
	"fmt"
	"sort"
	"strings"

	"micronet/internal/match"
)

// ============================================================================
// Membership rules
// ============================================================================

// unionIDs selects every association linked to any of the given
// networks. Pure membership, no weight semantics.
func unionIDs(records []match.Record) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// intersectionIDs selects associations present in at least n of the
// given networks, evaluated per n-sized combination and unioned across
// combinations. In sign-aware mode only records directly linked to
// every network of a combination qualify; in structural mode a
// counterpart connecting the same endpoint pair in each other network
// is enough.
func intersectionIDs(records []match.Record, networks []string, n int, useWeight bool) []string {
	coverage := match.Coverage(records)
	combos := combinations(networks, n)

	qualified := make(map[string]bool)
	var ids []string
	for _, rec := range records {
		nets := toSet(rec.Networks)
		for _, combo := range combos {
			if !qualifies(rec, nets, combo, coverage, useWeight) {
				continue
			}
			if !qualified[rec.ID] {
				qualified[rec.ID] = true
				ids = append(ids, rec.ID)
			}
			break
		}
	}
	return ids
}

func qualifies(rec match.Record, nets map[string]bool, combo []string, coverage map[match.PairKey]map[string]struct{}, useWeight bool) bool {
	if useWeight {
		// shared record: directly linked to every network of the combo
		for _, c := range combo {
			if !nets[c] {
				return false
			}
		}
		return true
	}

	// the record's own network must be part of the combination
	inCombo := false
	for _, c := range combo {
		if nets[c] {
			inCombo = true
			break
		}
	}
	if !inCombo {
		return false
	}

	cov := coverage[rec.Key]
	for _, c := range combo {
		if nets[c] {
			continue
		}
		if _, ok := cov[c]; !ok {
			return false
		}
	}
	return true
}

// differenceIDs selects associations linked to exactly one of the given
// networks with no structural counterpart in a different one. A
// counterpart with a conflicting sign still disqualifies: the same
// association observed with conflicting signs across networks is not
// unique to either.
func differenceIDs(records []match.Record, networks []string) []string {
	coverage := match.Coverage(records)
	listed := toSet(networks)

	var ids []string
	for _, rec := range records {
		own := make(map[string]bool)
		for _, net := range rec.Networks {
			if listed[net] {
				own[net] = true
			}
		}
		if len(own) != 1 {
			continue
		}

		unique := true
		for net := range coverage[rec.Key] {
			if listed[net] && !own[net] {
				unique = false
				break
			}
		}
		if unique {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// ============================================================================
// Helpers
// ============================================================================

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item] = true
	}
	return out
}

// combinations enumerates every n-sized combination of the networks
func combinations(networks []string, n int) [][]string {
	if n <= 0 || n > len(networks) {
		return nil
	}
	if n == len(networks) {
		return [][]string{networks}
	}

	var out [][]string
	combo := make([]string, 0, n)
	var walk func(start int)
	walk = func(start int) {
		if len(combo) == n {
			picked := make([]string, n)
			copy(picked, combo)
			out = append(out, picked)
			return
		}
		for i := start; i < len(networks); i++ {
			combo = append(combo, networks[i])
			walk(i + 1)
			combo = combo[:len(combo)-1]
		}
	}
	walk(0)
	return out
}

// setName builds the deterministic name for an operation's result, so
// that re-running with the same inputs overwrites the prior set.
func setName(operation string, networks []string, fraction float64, hasFraction bool) string {
	sorted := make([]string, len(networks))
	copy(sorted, networks)
	sort.Strings(sorted)
	if hasFraction {
		return fmt.Sprintf("%s_%.2f_%s", operation, fraction, strings.Join(sorted, "_"))
	}
	return fmt.Sprintf("%s_%s", operation, strings.Join(sorted, "_"))
}
