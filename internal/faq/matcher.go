// Package faq answers common questions from a static lookup table before
// the generative model is ever consulted.
package faq

import (
	"embed"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
)

//go:embed data/faqs.json
var dataFS embed.FS

// matchThreshold is the minimum fuzzy similarity score (0-100) for a
// non-exact question to be accepted.
const matchThreshold = 75

// Matcher performs exact and fuzzy lookups against a question-to-answer
// table. The table is loaded once, lazily and thread-safely, on first use.
// A load failure degrades the matcher to "never matches" instead of
// failing the process.
type Matcher struct {
	path string // optional override; empty means the embedded dataset

	once      sync.Once
	answers   map[string]string
	questions []string
}

// New returns a Matcher over the embedded FAQ dataset.
func New() *Matcher {
	return &Matcher{}
}

// NewFromFile returns a Matcher that loads its dataset from a JSON file of
// question-to-answer pairs.
func NewFromFile(path string) *Matcher {
	return &Matcher{path: path}
}

func (m *Matcher) load() {
	var raw []byte
	var err error
	if m.path != "" {
		raw, err = os.ReadFile(m.path)
	} else {
		raw, err = dataFS.ReadFile("data/faqs.json")
	}
	if err != nil {
		slog.Warn("FAQ dataset unavailable, matcher disabled", "path", m.path, "error", err)
		return
	}

	var answers map[string]string
	if err := json.Unmarshal(raw, &answers); err != nil {
		slog.Warn("FAQ dataset malformed, matcher disabled", "path", m.path, "error", err)
		return
	}

	m.answers = answers
	m.questions = make([]string, 0, len(answers))
	for q := range answers {
		m.questions = append(m.questions, q)
	}
	slog.Info("FAQ dataset loaded", "questions", len(m.questions))
}

// Answer returns the stored answer for query and true on a hit. Lookup is
// exact case-insensitive first, then fuzzy best-match accepted only at or
// above the similarity threshold. A miss signals fall-through to the model.
func (m *Matcher) Answer(query string) (string, bool) {
	m.once.Do(m.load)

	trimmed := strings.TrimSpace(query)
	if trimmed == "" || len(m.answers) == 0 {
		return "", false
	}

	for q, a := range m.answers {
		if strings.EqualFold(q, trimmed) {
			return a, true
		}
	}

	best, score := bestMatch(trimmed, m.questions)
	if score >= matchThreshold {
		return m.answers[best], true
	}
	return "", false
}

// bestMatch returns the candidate with the highest token-set similarity to
// the query, and that score.
func bestMatch(query string, candidates []string) (string, int) {
	var best string
	bestScore := -1
	for _, c := range candidates {
		if s := tokenSetRatio(query, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}
