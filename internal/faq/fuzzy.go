package faq

import (
	"sort"
	"strings"
)

// tokenSetRatio scores the similarity of two strings on a 0-100 scale,
// insensitive to word order and duplicated words. Both strings are split
// into token sets; the score is the best Levenshtein ratio among the
// intersection and the two intersection-plus-remainder combinations.
func tokenSetRatio(a, b string) int {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range tokensA {
		if tokensB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tokensB {
		if !tokensA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	full1 := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	full2 := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	score := ratio(full1, full2)
	if base != "" {
		if s := ratio(base, full1); s > score {
			score = s
		}
		if s := ratio(base, full2); s > score {
			score = s
		}
	}
	return score
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(normalize(s)) {
		set[t] = true
	}
	return set
}

// normalize lowercases and strips punctuation so "password?" and "password"
// compare equal.
func normalize(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			sb.WriteByte(' ')
		default:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// ratio converts Levenshtein distance into a 0-100 similarity score.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein(a, b)
	return int(float64(longest-d) / float64(longest) * 100)
}

// levenshtein calculates the edit distance between two strings using a
// single-row dynamic programming table.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
