package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	got, err := Load(Source{Name: "gemini api key", Value: "inline", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file secret, got %q", got)
	}
}

func TestLoadFallsBackToEnv(t *testing.T) {
	t.Setenv("HH_TRAITS_TEST_SECRET", " env-secret ")

	got, err := Load(Source{Name: "token", Env: "HH_TRAITS_TEST_SECRET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "env-secret" {
		t.Fatalf("expected env secret, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("   "), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	tests := []struct {
		name   string
		src    Source
		expect string
	}{
		{name: "nothing configured", src: Source{Name: "token"}, expect: "token is not configured"},
		{name: "default name", src: Source{}, expect: "secret is not configured"},
		{name: "empty file", src: Source{Name: "token", File: empty}, expect: "is empty"},
		{name: "missing file", src: Source{Name: "token", File: filepath.Join(t.TempDir(), "nope")}, expect: "reading token from file"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(tt.src)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error to contain %q, got %v", tt.expect, err)
			}
		})
	}
}

func TestOptionalMissing(t *testing.T) {
	t.Parallel()

	got, err := Optional(Source{Name: "token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty secret, got %q", got)
	}
}
