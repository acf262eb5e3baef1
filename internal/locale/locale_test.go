package locale

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
en:
  greeting_message: "Hello! Let's start."
  invalid_question_number: "Pick a number between 1 and {count}."
  answer_incorrect: "Wrong. The correct answer is: {correct_answer}"
uk:
  greeting_message: "Привіт!"
`

func TestGetFallbacks(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cases := []struct {
		key, lang, want string
	}{
		{"greeting_message", "en", "Hello! Let's start."},
		{"greeting_message", "uk", "Привіт!"},
		{"greeting_message", "uk-UA", "Привіт!"},
		{"greeting_message", "de", "Hello! Let's start."},
		{"greeting_message", "", "Hello! Let's start."},
		{"answer_incorrect", "uk", "Wrong. The correct answer is: {correct_answer}"},
		{"missing_key", "en", "_[missing_key]_"},
	}
	for _, c := range cases {
		if got := m.Get(c.key, c.lang); got != c.want {
			t.Errorf("Get(%q, %q) = %q, want %q", c.key, c.lang, got, c.want)
		}
	}
}

func TestFormat(t *testing.T) {
	m, _ := Parse([]byte(sample))
	got := m.Format("invalid_question_number", "en", map[string]any{"count": 12})
	if got != "Pick a number between 1 and 12." {
		t.Fatalf("unexpected %q", got)
	}
	got = m.Format("answer_incorrect", "en", map[string]any{"correct_answer": "Paris", "unused": 1})
	if got != "Wrong. The correct answer is: Paris" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locales.yml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get("greeting_message", "en") == "_[greeting_message]_" {
		t.Fatal("messages were not loaded")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Parse([]byte("en: [not, a, map]")); err == nil {
		t.Fatal("expected error for malformed locales")
	}

	empty := New(nil)
	if got := empty.Get("anything", "en"); got != "_[anything]_" {
		t.Fatalf("unexpected %q", got)
	}
}
