// Package similarity provides the string-similarity primitives used by the
// fuzzy matching tier. Measures are pluggable; the scorer only depends on
// the Measure interface.
package similarity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Measure computes a normalized similarity in [0,1] between two strings.
type Measure interface {
	Similarity(a, b string) float64
}

// ForName returns the measure selected by configuration.
func ForName(name string) (Measure, error) {
	switch name {
	case "", "token_set":
		return TokenSet{}, nil
	case "jaro_winkler":
		return JaroWinkler{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity measure %q", name)
	}
}

// TokenSet scores word-order-insensitive similarity: the token sets of both
// strings are split into the shared intersection and the two remainders,
// and the best pairwise edit-distance ratio of the recombined strings wins.
// Duplicate tokens collapse, so "tower a tower" and "tower a" are equal.
type TokenSet struct{}

func (TokenSet) Similarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	setA := tokenSet(a)
	setB := tokenSet(b)

	var inter, diffA, diffB []string
	for tok := range setA {
		if setB[tok] {
			inter = append(inter, tok)
		} else {
			diffA = append(diffA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			diffB = append(diffB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(diffA)
	sort.Strings(diffB)

	base := strings.Join(inter, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(diffA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(diffB, " "))

	// One side fully contained in the other is a perfect token-set match.
	if base != "" && (len(diffA) == 0 || len(diffB) == 0) {
		return 1.0
	}

	best := ratio(base, combinedA)
	if r := ratio(base, combinedB); r > best {
		best = r
	}
	if r := ratio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

// ratio is a normalized edit-distance similarity: 1 at equality, 0 when
// every character differs.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	if dist >= longest {
		return 0.0
	}
	return 1.0 - float64(dist)/float64(longest)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// JaroWinkler wraps the smetrics Jaro-Winkler implementation with the
// conventional boost threshold and prefix size.
type JaroWinkler struct{}

func (JaroWinkler) Similarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0.0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}
