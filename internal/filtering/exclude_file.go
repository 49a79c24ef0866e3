package filtering

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/hh-traits/internal/advert"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes advertisements listed in a
// file. The file holds one advertisement ID per line; blank lines and lines
// starting with # are ignored. An empty path disables the filter.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{
		path: strings.TrimSpace(path),
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) IsEnabled() bool { return f.path != "" }

func (f *excludeFileFilter) Apply(_ context.Context, ads []advert.Advertisement) ([]advert.Advertisement, Step, error) {
	initial := len(ads)

	excluded, err := ReadExcludeFile(f.path)
	if err != nil {
		return ads, Step{}, fmt.Errorf("getting excluded advertisements from file: %w", err)
	}

	left, removed := keep(ads, func(ad advert.Advertisement) bool {
		_, ok := excluded[ad.ID]
		return ok
	})

	return left, Step{Initial: initial, Dropped: len(removed), Left: len(left)}, nil
}

// ReadExcludeFile returns the set of advertisement IDs listed in path.
func ReadExcludeFile(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
