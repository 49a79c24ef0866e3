package synonym

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DatamuseURL is the public Datamuse API endpoint.
	DatamuseURL = "https://api.datamuse.com"

	defaultDatamuseMax = 20
)

// Datamuse looks synonyms up through the Datamuse word-finding API.
type Datamuse struct {
	client *resty.Client
	max    int
}

type datamuseWord struct {
	Word  string `json:"word"`
	Score int    `json:"score"`
}

// NewDatamuse creates a client for baseURL. An empty baseURL selects the
// public endpoint; max limits the number of synonyms per word.
func NewDatamuse(baseURL string, max int, timeout time.Duration) *Datamuse {
	if baseURL == "" {
		baseURL = DatamuseURL
	}
	if max <= 0 {
		max = defaultDatamuseMax
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Datamuse{client: client, max: max}
}

// Lookup implements Expander.
func (d *Datamuse) Lookup(ctx context.Context, word string) ([]string, error) {
	var result []datamuseWord
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("rel_syn", word).
		SetQueryParam("max", strconv.Itoa(d.max)).
		SetResult(&result).
		Get("/words")
	if err != nil {
		return nil, fmt.Errorf("failed to call Datamuse API: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Datamuse API error: status %d", resp.StatusCode())
	}

	if len(result) == 0 {
		return nil, ErrNoSynonyms
	}

	words := make([]string, 0, len(result))
	for _, item := range result {
		words = append(words, item.Word)
	}

	return words, nil
}
