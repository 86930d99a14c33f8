package analyzer

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Result is the outcome of analysing one essay.
type Result struct {
	ErrorCount int
	Keywords   []string
}

// Analyzer inspects essay text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// KeywordAnalyzer is the offline fallback used when no model is configured.
// It reports the most frequent non-stopword terms and counts obvious typographic slips.
type KeywordAnalyzer struct {
	MaxKeywords int
}

// Analyze implements Analyzer.
func (a KeywordAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	limit := a.MaxKeywords
	if limit <= 0 {
		limit = 5
	}

	counts := map[string]int{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		word = strings.Trim(word, "'")
		if len(word) < 4 || stopwords[word] {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}

	return Result{ErrorCount: countSlips(text), Keywords: words}, nil
}

// countSlips counts doubled spaces, repeated words and sentences not starting with a capital.
func countSlips(text string) int {
	slips := strings.Count(text, "  ")

	fields := strings.Fields(text)
	for i := 1; i < len(fields); i++ {
		if strings.EqualFold(fields[i], fields[i-1]) {
			slips++
		}
	}

	expectCapital := true
	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			expectCapital = true
		case unicode.IsLetter(r):
			if expectCapital && unicode.IsLower(r) {
				slips++
			}
			expectCapital = false
		}
	}
	return slips
}

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "because": true, "been": true, "before": true,
	"being": true, "but": true, "could": true, "does": true, "each": true, "from": true,
	"have": true, "into": true, "just": true, "more": true, "most": true, "much": true,
	"only": true, "other": true, "over": true, "should": true, "some": true, "such": true,
	"than": true, "that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "very": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true,
}
