package taxonomy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVFile loads keywords from a two-column "keyword,trait" file. A header
// row and lines starting with '#' are skipped.
type CSVFile struct {
	Path string
}

// LoadKeywords implements the keyword configuration source.
func (f CSVFile) LoadKeywords() ([]Keyword, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	defer file.Close()

	keywords, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read keyword file %q: %w", f.Path, err)
	}

	return keywords, nil
}

// ReadCSV parses keyword rows preserving their order.
func ReadCSV(r io.Reader) ([]Keyword, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var keywords []Keyword
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 2 {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected keyword and trait, got %d field(s)", line, len(record))
		}

		keywords = append(keywords, Keyword{
			Word:  strings.TrimSpace(record[0]),
			Trait: strings.TrimSpace(record[1]),
		})
	}

	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	return keywords, nil
}

func isHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), "keyword") &&
		strings.EqualFold(strings.TrimSpace(record[1]), "trait")
}
