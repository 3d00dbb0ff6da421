// Package ngram extracts character n-grams from text.
//
// N-grams are the only features the detector looks at: both the vocabulary built at
// training time and the feature vectors built at inference time come from Extract.
//
// Usage Example:
//
//	grams := ngram.Extract("hello", 2, 3)
//	// ["he", "el", "ll", "lo", "hel", "ell", "llo"]
//
// Windows slide over runes rather than bytes, so accented letters and other
// multi-byte characters count as a single character.
package ngram

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Extract returns every contiguous character substring of length minN..maxN,
// case-folded, in left-to-right order: all n-grams of size minN first, then minN+1,
// and so on. Duplicates are kept.
func Extract(text string, minN, maxN int) []string {
	ngrams := []string{}
	if text == "" || minN <= 0 || maxN < minN {
		return ngrams
	}

	runes := []rune(lower(text))
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(runes); i++ {
			ngrams = append(ngrams, string(runes[i:i+n]))
		}
	}

	return ngrams
}

// Count tallies occurrences of each n-gram.
func Count(ngrams []string) map[string]int {
	counts := make(map[string]int, len(ngrams))
	for _, ng := range ngrams {
		counts[ng]++
	}
	return counts
}

// TermFrequencies returns the relative frequency of each n-gram in text.
// An empty n-gram sequence is treated as having a total of one.
func TermFrequencies(text string, minN, maxN int) map[string]float64 {
	ngrams := Extract(text, minN, maxN)
	total := float64(len(ngrams))
	if total == 0 {
		total = 1
	}

	tf := make(map[string]float64)
	for ng, count := range Count(ngrams) {
		tf[ng] = float64(count) / total
	}
	return tf
}

// lower case-folds text with a fresh Caser; Casers carry state and are not
// safe to share between goroutines.
func lower(text string) string {
	return cases.Lower(language.Und).String(text)
}
