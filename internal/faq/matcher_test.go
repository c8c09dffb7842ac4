package faq

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExactMatchAnyCasing(t *testing.T) {
	m := New()

	tests := []string{
		"How do I reset my password?",
		"how do i reset my password?",
		"HOW DO I RESET MY PASSWORD?",
		"  How do I reset my password?  ",
	}
	for _, q := range tests {
		answer, ok := m.Answer(q)
		if !ok {
			t.Errorf("Answer(%q) missed, want exact hit", q)
			continue
		}
		if answer == "" {
			t.Errorf("Answer(%q) returned empty answer", q)
		}
	}
}

func TestFuzzyMatchNearQuestion(t *testing.T) {
	m := New()

	// Within two character edits of the stored question.
	tests := []string{
		"How do I reset my pasword?",
		"How do I resett my password",
		"where is my ordr?",
	}
	for _, q := range tests {
		if _, ok := m.Answer(q); !ok {
			t.Errorf("Answer(%q) missed, want fuzzy hit", q)
		}
	}
}

func TestDissimilarQueryMisses(t *testing.T) {
	m := New()

	tests := []string{
		"What is the meaning of life?",
		"Tell me a joke about penguins",
		"",
		"   ",
	}
	for _, q := range tests {
		if answer, ok := m.Answer(q); ok {
			t.Errorf("Answer(%q) = %q, want miss", q, answer)
		}
	}
}

// TestLoadFailureDegrades verifies a missing or malformed dataset disables
// matching instead of crashing.
func TestLoadFailureDegrades(t *testing.T) {
	missing := NewFromFile(filepath.Join(t.TempDir(), "absent.json"))
	if _, ok := missing.Answer("How do I reset my password?"); ok {
		t.Error("matcher with missing dataset returned a hit")
	}

	malformedPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(malformedPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing malformed dataset: %v", err)
	}
	malformed := NewFromFile(malformedPath)
	if _, ok := malformed.Answer("How do I reset my password?"); ok {
		t.Error("matcher with malformed dataset returned a hit")
	}
}

func TestCustomDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqs.json")
	if err := os.WriteFile(path, []byte(`{"What is Acme?": "An online retailer."}`), 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}

	m := NewFromFile(path)
	answer, ok := m.Answer("what is acme?")
	if !ok || answer != "An online retailer." {
		t.Errorf("Answer = (%q, %v), want custom answer", answer, ok)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"password", "pasword", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenSetRatioWordOrder(t *testing.T) {
	a := "reset my password how do I"
	b := "How do I reset my password?"
	if got := tokenSetRatio(a, b); got != 100 {
		t.Errorf("tokenSetRatio word-order invariance: got %d, want 100", got)
	}
}
