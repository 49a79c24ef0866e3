// Package taxonomy maps personality keywords to the Big Five trait they
// describe.
package taxonomy

import (
	"errors"
	"strings"
)

// ErrNoKeywords is returned when a configuration yields no keywords.
var ErrNoKeywords = errors.New("no keywords configured")

// Keyword assigns a word to a trait label.
type Keyword struct {
	Word  string
	Trait string
}

// Taxonomy is the loaded keyword configuration. Keywords keep file order.
type Taxonomy struct {
	keywords   []string
	traits     []string
	byWord     map[string]string
	duplicates []string
}

// New normalizes keywords and fixes the trait order. Words and trait labels are
// lowercased and trimmed; the first mapping of a repeated word wins. When
// traitOrder is empty the traits are ordered by first appearance.
func New(keywords []Keyword, traitOrder []string) (*Taxonomy, error) {
	t := &Taxonomy{byWord: make(map[string]string, len(keywords))}

	for _, kw := range keywords {
		word := strings.ToLower(strings.TrimSpace(kw.Word))
		trait := normalizeTrait(kw.Trait)
		if word == "" {
			continue
		}
		if _, seen := t.byWord[word]; seen {
			t.duplicates = append(t.duplicates, word)
			continue
		}
		t.byWord[word] = trait
		t.keywords = append(t.keywords, word)
	}

	if len(t.keywords) == 0 {
		return nil, ErrNoKeywords
	}

	if len(traitOrder) > 0 {
		t.traits = dedupe(traitOrder)
	} else {
		traits := make([]string, 0, len(t.keywords))
		for _, word := range t.keywords {
			if trait := t.byWord[word]; trait != "" {
				traits = append(traits, trait)
			}
		}
		t.traits = dedupe(traits)
	}

	return t, nil
}

// Keywords returns the keywords in configuration order.
func (t *Taxonomy) Keywords() []string {
	return append([]string(nil), t.keywords...)
}

// Traits returns the trait order every trait vector is aligned to.
func (t *Taxonomy) Traits() []string {
	return append([]string(nil), t.traits...)
}

// Mapping returns a copy of the keyword to trait map.
func (t *Taxonomy) Mapping() map[string]string {
	out := make(map[string]string, len(t.byWord))
	for k, v := range t.byWord {
		out[k] = v
	}
	return out
}

// Duplicates lists repeated keywords that were ignored.
func (t *Taxonomy) Duplicates() []string {
	return append([]string(nil), t.duplicates...)
}

// Len returns the number of distinct keywords.
func (t *Taxonomy) Len() int {
	return len(t.keywords)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalizeTrait(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// normalizeTrait makes trait labels from the CSV and from the configured
// order comparable.
func normalizeTrait(trait string) string {
	return strings.ToLower(strings.TrimSpace(trait))
}
