package normalizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"commodity-price-portal/internal/models"
)

// Kind selects which canonical table a label is resolved against
type Kind int

const (
	KindCommodity Kind = iota
	KindRegion
)

func (k Kind) String() string {
	switch k {
	case KindCommodity:
		return "commodity"
	case KindRegion:
		return "region"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type compiledEntry struct {
	id       string
	folded   string
	synonyms []string
}

// Normalizer maps free-text labels to canonical identifiers.
// It is immutable once built and safe for concurrent use.
type Normalizer struct {
	commodities []compiledEntry
	regions     []compiledEntry
}

// New validates table and compiles it into a Normalizer
func New(table Table) (*Normalizer, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{
		commodities: compile(table.Commodities),
		regions:     compile(table.Regions),
	}, nil
}

// Default returns a Normalizer over the built-in table
func Default() *Normalizer {
	n, err := New(DefaultTable())
	if err != nil {
		panic(fmt.Sprintf("normalizer: built-in table is invalid: %v", err))
	}
	return n
}

func compile(entries []Entry) []compiledEntry {
	out := make([]compiledEntry, 0, len(entries))
	for _, e := range entries {
		c := compiledEntry{id: e.ID, folded: fold(e.ID)}
		for _, s := range e.Synonyms {
			if f := fold(s); f != "" {
				c.synonyms = append(c.synonyms, f)
			}
		}
		out = append(out, c)
	}
	return out
}

// Normalize resolves raw to a canonical id. The second result is false when nothing matches.
//
// An exact match on the canonical id wins first. Otherwise the first entry, in table
// order, with a synonym contained in the label is returned. A synonym only matches
// whole words, so "rice" does not resolve "sugar price".
func (n *Normalizer) Normalize(raw string, kind Kind) (string, bool) {
	entries := n.commodities
	if kind == KindRegion {
		entries = n.regions
	}

	label := fold(raw)
	if label == "" {
		return "", false
	}

	for _, e := range entries {
		if e.folded == label {
			return e.id, true
		}
	}
	for _, e := range entries {
		for _, s := range e.synonyms {
			if containsWord(label, s) {
				return e.id, true
			}
		}
	}
	return "", false
}

// Commodity resolves a commodity label
func (n *Normalizer) Commodity(raw string) (models.Commodity, bool) {
	id, ok := n.Normalize(raw, KindCommodity)
	return models.Commodity(id), ok
}

// Region resolves a region label
func (n *Normalizer) Region(raw string) (models.Region, bool) {
	id, ok := n.Normalize(raw, KindRegion)
	return models.Region(id), ok
}

// fold lower-cases s and treats underscores, hyphens and whitespace runs as one space
func fold(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// containsWord reports whether keyword occurs in label with no letter or digit on either side
func containsWord(label, keyword string) bool {
	for from := 0; from+len(keyword) <= len(label); {
		i := strings.Index(label[from:], keyword)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(keyword)
		if !wordRuneBefore(label, start) && !wordRuneAt(label, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func wordRuneBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordRuneAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
