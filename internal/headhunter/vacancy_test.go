package headhunter

import "testing"

func TestVacancyText(t *testing.T) {
	t.Parallel()

	full := &Vacancy{
		ID:          "1",
		Name:        "Go Developer",
		Description: "<p>We need a <b>diligent</b> engineer</p>",
	}
	full.KeySkills = append(full.KeySkills, struct {
		Name string `json:"name,omitempty"`
	}{Name: "Teamwork"})
	full.Snipet.Requirement = "ignored when description is present"

	if got := full.Text(); got != "Go Developer\n<p>We need a <b>diligent</b> engineer</p>\nTeamwork" {
		t.Fatalf("unexpected text: %q", got)
	}

	brief := &Vacancy{ID: "2", Name: "Designer"}
	brief.Snipet.Requirement = "Creative <highlighttext>mind</highlighttext>"
	brief.Snipet.Responsibility = "  "

	if got := brief.Text(); got != "Designer\nCreative <highlighttext>mind</highlighttext>" {
		t.Fatalf("unexpected snippet text: %q", got)
	}

	if got := (&Vacancy{}).Text(); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestVacanciesLen(t *testing.T) {
	t.Parallel()

	vacancies := &Vacancies{Items: []*Vacancy{{ID: "1"}, {ID: "2"}}}

	if vacancies.Len() != 2 {
		t.Fatalf("expected 2 vacancies, got %d", vacancies.Len())
	}
}
