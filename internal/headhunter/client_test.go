package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

func vacancyIDs(v *Vacancies) []string {
	ids := make([]string, 0, v.Len())
	for _, vacancy := range v.Items {
		ids = append(ids, vacancy.ID)
	}
	return ids
}

func newTestServer(t *testing.T, pages int, gzipped bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("unexpected user agent %q", got)
		}

		switch {
		case r.URL.Path == SearchPath:
			if r.Header.Get("Authorization") != "Bearer token" {
				t.Errorf("expected bearer token")
			}
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			body := map[string]any{
				"items": []map[string]any{
					{"id": fmt.Sprintf("%d-a", page), "name": "Go Developer"},
					{"id": fmt.Sprintf("%d-b", page), "name": "SRE"},
				},
				"found":    pages * 2,
				"pages":    pages,
				"page":     page,
				"per_page": 2,
			}
			w.Header().Set("Content-Type", "application/json")
			if gzipped {
				w.Header().Set("Content-Encoding", "gzip")
				gz := gzip.NewWriter(w)
				defer gz.Close()
				_ = json.NewEncoder(gz).Encode(body)
				return
			}
			_ = json.NewEncoder(w).Encode(body)
		case r.URL.Path == "/vacancies/42":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"42","name":"Go Developer","description":"<p>diligent</p>"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestClientSearchFollowsPages(t *testing.T) {
	t.Parallel()

	for _, gzipped := range []bool{false, true} {
		server := newTestServer(t, 3, gzipped)
		t.Cleanup(server.Close)

		client := New(zap.NewNop(), "token")
		client.APIURL = server.URL

		vacancies, err := client.Search(context.Background(), &SearchParams{Text: "golang"})
		if err != nil {
			t.Fatalf("unexpected error (gzip=%v): %v", gzipped, err)
		}

		expect := []string{"0-a", "0-b", "1-a", "1-b", "2-a", "2-b"}
		if got := vacancyIDs(vacancies); !reflect.DeepEqual(got, expect) {
			t.Fatalf("expected %v, got %v", expect, got)
		}
	}
}

func TestClientSearchLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, 5, false)
	t.Cleanup(server.Close)

	client := New(nil, "token")
	client.APIURL = server.URL

	vacancies, err := client.Search(context.Background(), &SearchParams{Text: "golang", Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vacancies.Len() != 3 {
		t.Fatalf("expected 3 vacancies, got %d", vacancies.Len())
	}
}

func TestClientGetVacancy(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, 1, false)
	t.Cleanup(server.Close)

	client := New(nil, "")
	client.APIURL = server.URL

	vacancy, err := client.GetVacancy(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vacancy.Description != "<p>diligent</p>" {
		t.Fatalf("unexpected description: %q", vacancy.Description)
	}

	if _, err := client.GetVacancy(context.Background(), "404"); err == nil {
		t.Fatalf("expected error for missing vacancy")
	}
	if _, err := client.GetVacancy(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	params := &SearchParams{
		Text:       "golang",
		Areas:      []int{1, 2},
		Schedules:  []string{"remote"},
		Experience: "between1And3",
		PerPage:    "100",
		Limit:      10,
	}

	q := buildParams(params)

	if got := q["area"]; !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Fatalf("unexpected areas: %v", got)
	}
	if q.Get("schedule") != "remote" || q.Get("text") != "golang" || q.Get("experience") != "between1And3" {
		t.Fatalf("unexpected params: %v", q)
	}
	for _, absent := range []string{"employer_id", "period", "clusters", "limit", "Limit", "order_by"} {
		if q.Has(absent) {
			t.Fatalf("expected %q to be omitted, got %v", absent, q)
		}
	}
}
