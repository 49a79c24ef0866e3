package advert

// Token is a single cleaned word unit of an advertisement.
type Token string

// Advertisement is one job posting. Tokens stay nil until the advertisement
// has been cleaned.
type Advertisement struct {
	ID     string
	Text   string
	Tokens []Token
}

// Words returns the tokens as plain strings.
func (a Advertisement) Words() []string {
	words := make([]string, len(a.Tokens))
	for i, token := range a.Tokens {
		words[i] = string(token)
	}
	return words
}

// Cleaned reports whether the advertisement went through the cleaner.
func (a Advertisement) Cleaned() bool {
	return a.Tokens != nil
}

// HasTokens reports whether cleaning left anything to score.
func (a Advertisement) HasTokens() bool {
	return len(a.Tokens) > 0
}
