package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// traitPrefix keeps trait attributes apart from keywords with the same name.
const traitPrefix = "trait_"

// ARFF writes the result as a Weka attribute-relation file.
type ARFF struct {
	Path     string
	Relation string
}

// Emit writes the file atomically: a temporary file next to Path is renamed
// over it once complete.
func (a ARFF) Emit(ctx context.Context, r Result) error {
	return emitStaged(ctx, a, r)
}

// Prepare renders the result into a temporary file next to Path.
func (a ARFF) Prepare(_ context.Context, r Result) (Pending, error) {
	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hh-traits-*.arff")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	if err := WriteARFF(tmp, a.Relation, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write arff: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close output file: %w", err)
	}

	return &arffPending{tmp: tmp.Name(), path: a.Path}, nil
}

type arffPending struct {
	tmp  string
	path string
}

func (p *arffPending) Commit(context.Context) error {
	if err := os.Rename(p.tmp, p.path); err != nil {
		return fmt.Errorf("move output file into place: %w", err)
	}
	return nil
}

func (p *arffPending) Discard() error {
	if err := os.Remove(p.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove temporary output file: %w", err)
	}
	return nil
}

// WriteARFF renders r: an id string attribute, one numeric attribute per
// keyword in configuration order, one per trait, then a data row per
// advertisement sorted by ID.
func WriteARFF(w io.Writer, relation string, r Result) error {
	if strings.TrimSpace(relation) == "" {
		relation = DefaultRelation
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "@RELATION %s\n\n", quote(relation))
	fmt.Fprintf(bw, "@ATTRIBUTE id STRING\n")
	for _, kw := range r.Keywords {
		fmt.Fprintf(bw, "@ATTRIBUTE %s NUMERIC\n", quote(kw))
	}
	for _, trait := range r.Traits {
		fmt.Fprintf(bw, "@ATTRIBUTE %s NUMERIC\n", quote(traitPrefix+trait))
	}
	fmt.Fprintf(bw, "\n@DATA\n")

	row := make([]string, 0, 1+len(r.Keywords)+len(r.Traits))
	for _, id := range r.AdIDs() {
		row = row[:0]
		row = append(row, quote(id))

		scores := r.Scores[id]
		for _, kw := range r.Keywords {
			row = append(row, formatFloat(scores[kw]))
		}

		vector := r.Vectors[id]
		for i := range r.Traits {
			var v float64
			if i < len(vector) {
				v = vector[i]
			}
			row = append(row, formatFloat(v))
		}

		fmt.Fprintln(bw, strings.Join(row, ","))
	}

	return bw.Flush()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
