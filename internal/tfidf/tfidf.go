// Package tfidf provides a TF-IDF (Term Frequency-Inverse Document Frequency) vectorizer
// over character n-grams.
//
// The vectorizer learns a bounded vocabulary of the most widespread n-grams in a
// training corpus and turns any text into a fixed-length feature vector, one slot per
// vocabulary entry.
//
// The TF-IDF weight combines:
//   - Term Frequency (TF): how often an n-gram appears in the text, relative to all its n-grams
//   - Inverse Document Frequency (IDF): how rare the n-gram is across the training corpus
//
// Usage Example:
//
//	v := tfidf.NewVectorizer(tfidf.Options{MaxFeatures: 3000})
//	vectors, err := v.FitTransform(corpus)
//	vec, err := v.Transform("hola amigo")
//
// N-grams that were not kept in the vocabulary are dropped silently at transform time.
package tfidf

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chriscorrea/langsift/internal/ngram"

	"github.com/rs/zerolog/log"
)

// Default vectorizer options.
const (
	DefaultMinN        = 2
	DefaultMaxN        = 4
	DefaultMaxFeatures = 5000
)

// ErrNotFitted is returned by Transform when Fit has not been called.
var ErrNotFitted = errors.New("tfidf: vectorizer must be fitted before transform")

// Options configures the n-gram range and vocabulary bound.
// Zero values fall back to the defaults.
type Options struct {
	MinN        int
	MaxN        int
	MaxFeatures int
}

// Vectorizer holds the learned vocabulary and IDF weights.
// A fitted Vectorizer is read-only and safe for concurrent Transform calls.
type Vectorizer struct {
	minN        int
	maxN        int
	maxFeatures int
	vocabulary  map[string]int     // n-gram -> slot index
	idf         map[string]float64 // n-gram -> inverse document frequency
	fitted      bool
}

// Data is the serialized form of a fitted vectorizer.
type Data struct {
	MinN        int                `json:"minN" validate:"gte=1"`
	MaxN        int                `json:"maxN" validate:"gtefield=MinN"`
	MaxFeatures int                `json:"maxFeatures" validate:"gte=1"`
	Vocabulary  map[string]int     `json:"vocabulary" validate:"required"`
	IDF         map[string]float64 `json:"idf" validate:"required"`
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(opts Options) *Vectorizer {
	if opts.MinN <= 0 {
		opts.MinN = DefaultMinN
	}
	if opts.MaxN <= 0 {
		opts.MaxN = DefaultMaxN
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = DefaultMaxFeatures
	}

	return &Vectorizer{
		minN:        opts.MinN,
		maxN:        opts.MaxN,
		maxFeatures: opts.MaxFeatures,
		vocabulary:  map[string]int{},
		idf:         map[string]float64{},
	}
}

// MinN returns the smallest n-gram size.
func (v *Vectorizer) MinN() int { return v.minN }

// MaxN returns the largest n-gram size.
func (v *Vectorizer) MaxN() int { return v.maxN }

// MaxFeatures returns the vocabulary bound.
func (v *Vectorizer) MaxFeatures() int { return v.maxFeatures }

// VocabularySize returns the number of slots in every transformed vector.
func (v *Vectorizer) VocabularySize() int { return len(v.vocabulary) }

// IsFitted reports whether the vocabulary has been learned.
func (v *Vectorizer) IsFitted() bool { return v.fitted }

// Fit learns the vocabulary and IDF weights from a corpus, replacing any previous state.
//
// Each document contributes at most once to an n-gram's document frequency. N-grams are
// ranked by descending document frequency; ties keep first-seen order, i.e. the order
// in which the n-grams were first met while scanning the corpus. The top MaxFeatures
// n-grams get slot indices equal to their rank.
//
// IDF is smoothed as ln((N+1)/(df+1)) + 1 so that an n-gram present in every document
// still receives a strictly positive weight.
func (v *Vectorizer) Fit(corpus []string) {
	docFrequencies := make(map[string]int)
	var firstSeen []string // insertion order for tie-breaking

	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, ng := range ngram.Extract(doc, v.minN, v.maxN) {
			if _, dup := seen[ng]; dup {
				continue
			}
			seen[ng] = struct{}{}

			if _, known := docFrequencies[ng]; !known {
				firstSeen = append(firstSeen, ng)
			}
			docFrequencies[ng]++
		}
	}

	sort.SliceStable(firstSeen, func(i, j int) bool {
		return docFrequencies[firstSeen[i]] > docFrequencies[firstSeen[j]]
	})
	if len(firstSeen) > v.maxFeatures {
		firstSeen = firstSeen[:v.maxFeatures]
	}

	totalDocs := float64(len(corpus))
	v.vocabulary = make(map[string]int, len(firstSeen))
	v.idf = make(map[string]float64, len(firstSeen))
	for idx, ng := range firstSeen {
		v.vocabulary[ng] = idx
		v.idf[ng] = math.Log((totalDocs+1)/(float64(docFrequencies[ng])+1)) + 1
	}
	v.fitted = true

	log.Debug().
		Int("documents", len(corpus)).
		Int("observedNgrams", len(docFrequencies)).
		Int("vocabularySize", len(v.vocabulary)).
		Msg("TF-IDF vectorizer fitted")
}

// Transform converts text into a TF-IDF vector of length VocabularySize.
//
// Term frequency is the n-gram count divided by the total number of n-grams in the text
// (an empty text counts as one). Slots whose n-gram does not occur stay zero.
func (v *Vectorizer) Transform(text string) ([]float64, error) {
	if !v.fitted {
		return nil, ErrNotFitted
	}

	vector := make([]float64, len(v.vocabulary))

	ngrams := ngram.Extract(text, v.minN, v.maxN)
	total := float64(len(ngrams))
	if total == 0 {
		total = 1
	}

	for ng, count := range ngram.Count(ngrams) {
		idx, ok := v.vocabulary[ng]
		if !ok {
			continue // out of vocabulary
		}
		vector[idx] = float64(count) / total * v.idf[ng]
	}

	return vector, nil
}

// FitTransform fits the vectorizer on the corpus and transforms every document.
func (v *Vectorizer) FitTransform(corpus []string) ([][]float64, error) {
	v.Fit(corpus)

	vectors := make([][]float64, len(corpus))
	for i, doc := range corpus {
		vec, err := v.Transform(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to transform document %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Data exports the vectorizer for persistence.
func (v *Vectorizer) Data() Data {
	vocabulary := make(map[string]int, len(v.vocabulary))
	for ng, idx := range v.vocabulary {
		vocabulary[ng] = idx
	}
	idf := make(map[string]float64, len(v.idf))
	for ng, w := range v.idf {
		idf[ng] = w
	}

	return Data{
		MinN:        v.minN,
		MaxN:        v.maxN,
		MaxFeatures: v.maxFeatures,
		Vocabulary:  vocabulary,
		IDF:         idf,
	}
}

// FromData restores a fitted vectorizer. The vocabulary must map onto the dense range
// [0, size) and every vocabulary n-gram needs a positive IDF weight.
func FromData(data Data) (*Vectorizer, error) {
	if data.MinN <= 0 || data.MaxN < data.MinN {
		return nil, fmt.Errorf("invalid n-gram range [%d, %d]", data.MinN, data.MaxN)
	}

	slots := make([]bool, len(data.Vocabulary))
	for ng, idx := range data.Vocabulary {
		if idx < 0 || idx >= len(slots) || slots[idx] {
			return nil, fmt.Errorf("vocabulary index %d for %q is out of range or duplicated", idx, ng)
		}
		slots[idx] = true

		w, ok := data.IDF[ng]
		if !ok || w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("missing or non-positive idf for %q", ng)
		}
	}

	v := &Vectorizer{
		minN:        data.MinN,
		maxN:        data.MaxN,
		maxFeatures: data.MaxFeatures,
		vocabulary:  make(map[string]int, len(data.Vocabulary)),
		idf:         make(map[string]float64, len(data.Vocabulary)),
		fitted:      true,
	}
	for ng, idx := range data.Vocabulary {
		v.vocabulary[ng] = idx
		v.idf[ng] = data.IDF[ng]
	}
	return v, nil
}
