package taxonomy

import (
	"fmt"
	"strings"

	"micronet/pkg/errors"
)

// Level is one rank of the classification hierarchy
type Level string

const (
	Species Level = "Species"
	Genus   Level = "Genus"
	Family  Level = "Family"
	Order   Level = "Order"
	Class   Level = "Class"
	Phylum  Level = "Phylum"
	Kingdom Level = "Kingdom"
)

// Levels lists all ranks from finest to coarsest
var Levels = []Level{Species, Genus, Family, Order, Class, Phylum, Kingdom}

// Parse resolves a level string case-insensitively
func Parse(s string) (Level, error) {
	for _, l := range Levels {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", errors.NewUnknownLevel(s)
}

// Below returns the immediately finer level, or false for Species
func (l Level) Below() (Level, bool) {
	for i, cur := range Levels {
		if cur == l {
			if i == 0 {
				return "", false
			}
			return Levels[i-1], true
		}
	}
	return "", false
}

// Above returns the immediately coarser level, or false for Kingdom
func (l Level) Above() (Level, bool) {
	for i, cur := range Levels {
		if cur == l {
			if i == len(Levels)-1 {
				return "", false
			}
			return Levels[i+1], true
		}
	}
	return "", false
}

// DerivedName is the naming convention for an agglomerated network
func (l Level) DerivedName(base string) string {
	return fmt.Sprintf("%s_%s", l, base)
}

// BaseName strips any level prefix from a network name, so that
// agglomerating "Species_gut" at Genus yields "Genus_gut"
func BaseName(name string) string {
	for _, l := range Levels {
		prefix := string(l) + "_"
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}
