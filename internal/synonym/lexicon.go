package synonym

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon is a curated set of synonym groups. Every word of a group is a
// synonym of every other word of that group.
type Lexicon struct {
	groups  map[string][]string
	reverse map[string]string
}

type lexiconFile struct {
	Synonyms []struct {
		Canonical string   `yaml:"canonical"`
		Variants  []string `yaml:"variants"`
	} `yaml:"synonyms"`
}

// NewLexicon returns an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{
		groups:  make(map[string][]string),
		reverse: make(map[string]string),
	}
}

// LoadLexicon reads synonym groups from a YAML file of the form
//
//	synonyms:
//	  - canonical: diligent
//	    variants: [hardworking, industrious]
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	var file lexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lexicon %q: %w", path, err)
	}

	lex := NewLexicon()
	for _, entry := range file.Synonyms {
		lex.AddGroup(entry.Canonical, entry.Variants...)
	}

	return lex, nil
}

// AddGroup registers canonical and its variants as one group. Words already
// assigned to another group are moved to this one.
func (l *Lexicon) AddGroup(canonical string, variants ...string) {
	canonical = strings.ToLower(strings.TrimSpace(canonical))
	if canonical == "" {
		return
	}

	if old, ok := l.groups[canonical]; ok {
		for _, w := range old {
			delete(l.reverse, w)
		}
	}

	words := []string{canonical}
	seen := map[string]bool{canonical: true}
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		words = append(words, v)
	}

	for _, w := range words {
		if prev, ok := l.reverse[w]; ok && prev != canonical {
			l.groups[prev] = remove(l.groups[prev], w)
		}
		l.reverse[w] = canonical
	}
	l.groups[canonical] = words
}

// Variants returns the whole group of word, canonical first, or nil.
func (l *Lexicon) Variants(word string) []string {
	canonical, ok := l.reverse[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return nil
	}
	return append([]string(nil), l.groups[canonical]...)
}

// Related reports whether two words belong to the same group.
func (l *Lexicon) Related(a, b string) bool {
	ca, ok := l.reverse[strings.ToLower(strings.TrimSpace(a))]
	if !ok {
		return false
	}
	cb, ok := l.reverse[strings.ToLower(strings.TrimSpace(b))]
	return ok && ca == cb
}

// Groups returns the number of synonym groups.
func (l *Lexicon) Groups() int {
	return len(l.groups)
}

// Lookup implements Expander.
func (l *Lexicon) Lookup(_ context.Context, word string) ([]string, error) {
	return Normalize(word, l.Variants(word)), nil
}

func remove(words []string, word string) []string {
	out := words[:0]
	for _, w := range words {
		if w != word {
			out = append(out, w)
		}
	}
	return out
}
