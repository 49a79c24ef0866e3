package headhunter

import (
	"strings"
)

type Vacancies struct {
	Items []*Vacancy
}

type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Description  string `json:"description,omitempty"`
	KeySkills    []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Archived bool `json:"archived,omitempty"`
	Snipet   struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Text returns the advertisement text of the vacancy: its title, the full
// description (or the search snippet when the description is missing) and
// the key skills. The result may contain HTML.
func (va *Vacancy) Text() string {
	parts := []string{va.Name}

	if strings.TrimSpace(va.Description) != "" {
		parts = append(parts, va.Description)
	} else {
		parts = append(parts, va.Snipet.Requirement, va.Snipet.Responsibility)
	}

	for _, skill := range va.KeySkills {
		parts = append(parts, skill.Name)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	return strings.Join(nonEmpty, "\n")
}

func (v *Vacancies) Len() int {
	return len(v.Items)
}
