// Package bayes implements a Gaussian Naive Bayes classifier over TF-IDF vectors.
//
// Each class (language) is described by a prior and, per feature slot, a mean and a
// variance. Prediction sums per-slot Gaussian log-likelihoods, but only over slots
// whose value is positive: n-grams absent from the input are treated as carrying no
// evidence for that call. This is a sparsity approximation rather than textbook
// Gaussian Naive Bayes, and it shapes the decision boundary the stored models were
// tuned for.
//
// Classes are always kept in lexicographic order of their labels, so a classifier
// fitted in memory and the same classifier reloaded from JSON enumerate classes, and
// break argmax ties, identically.
package bayes

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// VarianceSmoothing is the floor applied to every per-feature variance.
const VarianceSmoothing = 1e-9

// ErrNotFitted is returned by Predict when the classifier has no statistics.
var ErrNotFitted = errors.New("bayes: classifier must be fitted before predict")

// Prediction is the outcome of classifying one vector.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// classStats holds the learned distribution of one class.
type classStats struct {
	prior     float64
	means     []float64
	variances []float64
}

// Classifier is a Gaussian Naive Bayes model.
// A fitted Classifier is read-only and safe for concurrent Predict calls.
type Classifier struct {
	classes     []string // lexicographic
	stats       map[string]classStats
	numFeatures int
	fitted      bool
}

// Data is the serialized form of a fitted classifier.
type Data struct {
	ClassPriors      map[string]float64   `json:"classPriors" validate:"required,min=1"`
	FeatureMeans     map[string][]float64 `json:"featureMeans" validate:"required,min=1"`
	FeatureVariances map[string][]float64 `json:"featureVariances" validate:"required,min=1"`
}

// NewClassifier creates an unfitted classifier.
func NewClassifier() *Classifier {
	return &Classifier{stats: map[string]classStats{}}
}

// IsFitted reports whether the classifier has statistics to predict with.
func (c *Classifier) IsFitted() bool { return c.fitted }

// Classes returns the class labels in lexicographic order.
func (c *Classifier) Classes() []string {
	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

// NumFeatures returns the vector length the classifier expects.
func (c *Classifier) NumFeatures() int { return c.numFeatures }

// Fit learns priors, means and variances from labelled vectors using the two-pass
// algorithm: means first, then population variances around them.
func (c *Classifier) Fit(vectors [][]float64, labels []string) error {
	trainer := NewTwoPassTrainer()
	if err := addLabelled(trainer, vectors, labels); err != nil {
		return err
	}

	fitted, err := trainer.Classifier()
	if err != nil {
		return err
	}
	*c = *fitted
	return nil
}

// Predict scores the vector against every class and returns the most likely label
// with a softmax-normalized probability distribution.
func (c *Classifier) Predict(vector []float64) (Prediction, error) {
	if !c.fitted {
		return Prediction{}, ErrNotFitted
	}
	if len(vector) != c.numFeatures {
		return Prediction{}, fmt.Errorf("vector has %d features, classifier expects %d", len(vector), c.numFeatures)
	}

	scores := make([]float64, len(c.classes))
	for i, label := range c.classes {
		scores[i] = c.logScore(vector, c.stats[label])
	}

	// first maximum wins, so ties go to the lexicographically smallest label
	best := floats.MaxIdx(scores)

	// softmax shifted by the maximum log-score for numerical stability
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - scores[best])
	}
	floats.Scale(1/floats.Sum(probs), probs)

	probabilities := make(map[string]float64, len(c.classes))
	for i, label := range c.classes {
		probabilities[label] = probs[i]
	}

	return Prediction{
		Label:         c.classes[best],
		Confidence:    probs[best],
		Probabilities: probabilities,
	}, nil
}

// PredictBatch predicts every vector independently.
func (c *Classifier) PredictBatch(vectors [][]float64) ([]Prediction, error) {
	predictions := make([]Prediction, len(vectors))
	for i, v := range vectors {
		p, err := c.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("failed to predict vector %d: %w", i, err)
		}
		predictions[i] = p
	}
	return predictions, nil
}

// logScore computes ln(prior) plus the Gaussian log-likelihood of the non-zero slots.
func (c *Classifier) logScore(vector []float64, s classStats) float64 {
	score := math.Log(s.prior)
	for i, val := range vector {
		if val <= 0 {
			continue
		}
		variance := s.variances[i]
		diff := val - s.means[i]
		score -= 0.5 * math.Log(2*math.Pi*variance)
		score -= diff * diff / (2 * variance)
	}
	return score
}

// Data exports the classifier for persistence.
func (c *Classifier) Data() Data {
	data := Data{
		ClassPriors:      make(map[string]float64, len(c.classes)),
		FeatureMeans:     make(map[string][]float64, len(c.classes)),
		FeatureVariances: make(map[string][]float64, len(c.classes)),
	}
	for _, label := range c.classes {
		s := c.stats[label]
		data.ClassPriors[label] = s.prior
		data.FeatureMeans[label] = append([]float64(nil), s.means...)
		data.FeatureVariances[label] = append([]float64(nil), s.variances...)
	}
	return data
}

// FromData restores a fitted classifier, checking that every class has a prior in
// (0, 1], mean and variance sequences of one common length, and positive variances.
func FromData(data Data) (*Classifier, error) {
	if len(data.ClassPriors) == 0 {
		return nil, errors.New("no classes")
	}

	stats := make(map[string]classStats, len(data.ClassPriors))
	numFeatures := -1
	var priorSum float64

	for label, prior := range data.ClassPriors {
		if prior <= 0 || prior > 1 || math.IsNaN(prior) {
			return nil, fmt.Errorf("class %q: prior %v outside (0, 1]", label, prior)
		}
		means, ok := data.FeatureMeans[label]
		if !ok {
			return nil, fmt.Errorf("class %q: missing feature means", label)
		}
		variances, ok := data.FeatureVariances[label]
		if !ok {
			return nil, fmt.Errorf("class %q: missing feature variances", label)
		}
		if len(means) != len(variances) {
			return nil, fmt.Errorf("class %q: %d means but %d variances", label, len(means), len(variances))
		}
		if numFeatures >= 0 && len(means) != numFeatures {
			return nil, fmt.Errorf("class %q: %d features, other classes have %d", label, len(means), numFeatures)
		}
		numFeatures = len(means)

		for i, v := range variances {
			if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("class %q: variance %v at slot %d is not positive", label, v, i)
			}
		}

		priorSum += prior
		stats[label] = classStats{
			prior:     prior,
			means:     append([]float64(nil), means...),
			variances: append([]float64(nil), variances...),
		}
	}

	if math.Abs(priorSum-1) > 1e-6 {
		return nil, fmt.Errorf("class priors sum to %v, want 1", priorSum)
	}

	return newFitted(stats, numFeatures), nil
}

// newFitted assembles a fitted classifier from per-class statistics.
func newFitted(stats map[string]classStats, numFeatures int) *Classifier {
	classes := make([]string, 0, len(stats))
	for label := range stats {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	return &Classifier{
		classes:     classes,
		stats:       stats,
		numFeatures: numFeatures,
		fitted:      true,
	}
}

// addLabelled feeds parallel vector/label slices into a trainer, one class batch at a time.
func addLabelled(t Trainer, vectors [][]float64, labels []string) error {
	if len(vectors) != len(labels) {
		return fmt.Errorf("got %d vectors but %d labels", len(vectors), len(labels))
	}
	for i, v := range vectors {
		if err := t.Add(labels[i], [][]float64{v}); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}

	log.Debug().
		Int("samples", len(labels)).
		Str("trainer", t.Name()).
		Msg("Naive Bayes samples added")
	return nil
}
