// Package normalize cleans raw tabular fields into the canonical owner and
// transaction record shapes used by the matching tiers.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SqftToSqm is the conversion factor applied to areas inferred to be in
// square feet.
const SqftToSqm = 0.092903

// Building-type synonyms all collapse to a single token so that
// "Building 2", "BLDG 2" and "Tower 2" compare equal.
var buildingSynonyms = []*regexp.Regexp{
	regexp.MustCompile(`\bbldg\b`),
	regexp.MustCompile(`\bbuilding\b`),
	regexp.MustCompile(`\bblk\b`),
	regexp.MustCompile(`\bblock\b`),
}

// Roman numerals I-X map to digits. Longer numerals substitute first so
// "viii" does not decay into "5 3".
var romanNumerals = []struct {
	re    *regexp.Regexp
	digit string
}{
	{regexp.MustCompile(`\bviii\b`), "8"},
	{regexp.MustCompile(`\bvii\b`), "7"},
	{regexp.MustCompile(`\bvi\b`), "6"},
	{regexp.MustCompile(`\biv\b`), "4"},
	{regexp.MustCompile(`\bix\b`), "9"},
	{regexp.MustCompile(`\biii\b`), "3"},
	{regexp.MustCompile(`\bii\b`), "2"},
	{regexp.MustCompile(`\bi\b`), "1"},
	{regexp.MustCompile(`\bv\b`), "5"},
	{regexp.MustCompile(`\bx\b`), "10"},
}

var reDigits = regexp.MustCompile(`\d+`)

// Cache memoizes normalization results keyed by raw input value.
// Normalization is a pure function of its input, so memoization is safe;
// the cache is owned by a Normalizer instance rather than being process
// state so tests run in isolation.
type Cache struct {
	text map[string]string
	unit map[string]string
}

// NewCache creates an empty normalization cache.
func NewCache() *Cache {
	return &Cache{
		text: make(map[string]string),
		unit: make(map[string]string),
	}
}

// Normalizer converts raw field values into canonical form.
type Normalizer struct {
	cache *Cache

	// SqftThreshold is the value below which a raw area is assumed to be
	// square feet and converted. Zero disables inference.
	SqftThreshold float64
}

// New creates a Normalizer with the given cache. A nil cache gets a fresh
// private one.
func New(cache *Cache) *Normalizer {
	if cache == nil {
		cache = NewCache()
	}
	return &Normalizer{cache: cache, SqftThreshold: 1000}
}

// CleanText Unicode-normalizes (NFKC), lowercases, trims and collapses
// whitespace, and applies building synonym and Roman numeral replacement.
func (n *Normalizer) CleanText(raw string) string {
	if cached, ok := n.cache.text[raw]; ok {
		return cached
	}

	s := norm.NFKC.String(raw)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")

	for _, re := range buildingSynonyms {
		s = re.ReplaceAllString(s, "tower")
	}
	for _, rn := range romanNumerals {
		s = rn.re.ReplaceAllString(s, rn.digit)
	}

	n.cache.text[raw] = s
	return s
}

// UnitNumber extracts the first run of digits from a unit field and
// zero-pads it to 4 digits. Non-numeric unit text passes through cleaned
// but otherwise unchanged.
func (n *Normalizer) UnitNumber(raw string) string {
	if cached, ok := n.cache.unit[raw]; ok {
		return cached
	}

	s := strings.TrimSpace(norm.NFKC.String(raw))
	result := s
	if m := reDigits.FindString(s); m != "" {
		result = zeroPad(m, 4)
	}

	n.cache.unit[raw] = result
	return result
}

// AreaSqm converts a raw area value to square meters. Values below the
// square-foot threshold are assumed to be square feet. The boolean result
// is false when the value was malformed and coerced to the zero sentinel.
func (n *Normalizer) AreaSqm(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, true
	}

	area, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(area) || math.IsInf(area, 0) {
		return 0, false
	}
	if area < 0 {
		return 0, false
	}
	if n.SqftThreshold > 0 && area < n.SqftThreshold {
		area *= SqftToSqm
	}
	return math.Round(area*100) / 100, true
}

// CompositeKey builds the apartment join key from cleaned fields.
func CompositeKey(project, building, unit string) string {
	return fmt.Sprintf("%s|%s|%s", project, building, unit)
}

// PlotKey builds the villa/plot join key from cleaned fields.
func PlotKey(project, plot string) string {
	return fmt.Sprintf("%s|%s", project, plot)
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// DeriveOwnerID builds a stable owner id from cleaned building, unit and
// owner name when the source supplies none.
func DeriveOwnerID(building, unit, name string) string {
	id := building + "_" + unit + "_" + name
	return strings.ReplaceAll(id, " ", "_")
}
