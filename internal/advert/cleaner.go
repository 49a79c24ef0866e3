// Package advert holds the advertisement record and the cleaner that turns
// raw advertisement text into tokens.
package advert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/logger"
	"github.com/spigell/hh-traits/internal/progress"
)

var (
	// ErrEmptyText is recorded for advertisements with blank text.
	ErrEmptyText = errors.New("advertisement text is empty")
	// ErrNoTokens is recorded when nothing survives tokenization.
	ErrNoTokens = errors.New("no tokens left after cleaning")
	// ErrMarkup is recorded when the text cannot be parsed as HTML.
	ErrMarkup = errors.New("cannot parse advertisement markup")
)

const defaultMinTokenLength = 2

// blockElements get a separator appended so that words of adjacent blocks do
// not glue together once tags are removed.
const blockElements = "p, div, br, li, ul, ol, h1, h2, h3, h4, h5, h6, tr, td, th, section, article, blockquote"

// CleanError is a cleaning failure of a single advertisement.
type CleanError struct {
	AdID string
	Err  error
}

func (e CleanError) Error() string {
	return fmt.Sprintf("advertisement %q: %v", e.AdID, e.Err)
}

func (e CleanError) Unwrap() error {
	return e.Err
}

// CleanerConfig tunes tokenization.
type CleanerConfig struct {
	// Stopwords extend DefaultStopwords.
	Stopwords []string
	// MinTokenLength drops shorter tokens. Zero means the default of 2.
	MinTokenLength int
}

// Cleaner normalizes advertisement text into tokens. It is safe for
// concurrent use; failures are collected until RecoverErrors is called.
type Cleaner struct {
	stopwords map[string]struct{}
	minLen    int
	progress  progress.Reporter
	logger    *zap.Logger

	mu   sync.Mutex
	errs []CleanError
}

// NewCleaner builds a cleaner. Nil reporter and logger are allowed.
func NewCleaner(cfg CleanerConfig, reporter progress.Reporter, log *zap.Logger) *Cleaner {
	stops := make(map[string]struct{}, len(DefaultStopwords)+len(cfg.Stopwords))
	for _, w := range DefaultStopwords {
		stops[w] = struct{}{}
	}
	for _, w := range cfg.Stopwords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			stops[w] = struct{}{}
		}
	}

	minLen := cfg.MinTokenLength
	if minLen <= 0 {
		minLen = defaultMinTokenLength
	}

	if reporter == nil {
		reporter = progress.Nop{}
	}

	return &Cleaner{
		stopwords: stops,
		minLen:    minLen,
		progress:  reporter,
		logger:    logger.WithFields(log),
	}
}

// Clean returns a copy of ad with Tokens populated. It never fails: a
// malformed advertisement comes back with an empty token slice and the
// failure is kept for RecoverErrors.
func (c *Cleaner) Clean(ad Advertisement) Advertisement {
	defer c.progress.Tick()

	out := Advertisement{ID: ad.ID, Text: ad.Text, Tokens: []Token{}}

	if strings.TrimSpace(ad.Text) == "" {
		c.record(ad.ID, ErrEmptyText)
		return out
	}

	plain, err := stripMarkup(ad.Text)
	if err != nil {
		c.record(ad.ID, fmt.Errorf("%w: %v", ErrMarkup, err))
		return out
	}

	tokens := c.Tokenize(plain)
	if len(tokens) == 0 {
		c.record(ad.ID, ErrNoTokens)
		return out
	}

	out.Tokens = tokens
	return out
}

// Tokenize splits plain text into normalized tokens.
func (c *Cleaner) Tokenize(text string) []Token {
	tokens := []Token{}
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := c.processToken(current.String()); word != "" {
			tokens = append(tokens, Token(word))
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// RecoverErrors logs the collected failures, returns them and resets the
// cleaner's failure state.
func (c *Cleaner) RecoverErrors() []CleanError {
	c.mu.Lock()
	errs := c.errs
	c.errs = nil
	c.mu.Unlock()

	for _, e := range errs {
		c.logger.Warn("advertisement could not be cleaned",
			zap.String(logger.FieldAdID, e.AdID),
			zap.Error(e.Err),
		)
	}

	return errs
}

func (c *Cleaner) record(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, CleanError{AdID: id, Err: err})
}

func (c *Cleaner) processToken(token string) string {
	word := strings.Trim(token, "-")
	for strings.Contains(word, "--") {
		word = strings.ReplaceAll(word, "--", "-")
	}

	if len([]rune(word)) < c.minLen {
		return ""
	}
	if isNumericOnly(word) {
		return ""
	}
	if _, stop := c.stopwords[word]; stop {
		return ""
	}

	return word
}

func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

// stripMarkup returns the visible text of an HTML fragment. Text without
// tags or entities is returned as is.
func stripMarkup(raw string) (string, error) {
	if !strings.ContainsAny(raw, "<&") {
		return raw, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", err
	}

	doc.Find("script, style").Remove()
	doc.Find(blockElements).AfterHtml(" ")

	return doc.Text(), nil
}
