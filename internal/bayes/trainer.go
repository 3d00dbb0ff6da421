package bayes

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

// Trainer accumulates labelled vectors and produces a fitted Classifier.
//
// Two strategies exist: TwoPassTrainer keeps every vector and computes exact
// two-pass variances; StreamingTrainer keeps only running sums and sums of squares, so
// its memory is bounded by classes x features no matter how much data flows through.
type Trainer interface {
	// Add feeds a batch of vectors that all belong to label.
	Add(label string, vectors [][]float64) error

	// Classifier derives the class statistics from everything added so far.
	Classifier() (*Classifier, error)

	// Name returns a human-readable name for this strategy (for logging)
	Name() string
}

// TrainingMethod selects a Trainer strategy.
type TrainingMethod int

const (
	// TwoPass buffers all vectors, then computes means and variances (default)
	TwoPass TrainingMethod = iota
	// Streaming accumulates sums and sums of squares over batches
	Streaming
)

// String returns the string representation of the training method.
func (m TrainingMethod) String() string {
	switch m {
	case TwoPass:
		return "batch"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// ParseTrainingMethod maps "batch" or "streaming" to a TrainingMethod.
func ParseTrainingMethod(s string) (TrainingMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "batch", "two-pass":
		return TwoPass, nil
	case "streaming", "stream":
		return Streaming, nil
	default:
		return TwoPass, fmt.Errorf("unknown training method %q (want batch or streaming)", s)
	}
}

// NewTrainer creates a Trainer for the given method.
func NewTrainer(method TrainingMethod) Trainer {
	switch method {
	case Streaming:
		return NewStreamingTrainer()
	default:
		return NewTwoPassTrainer()
	}
}

var errNoSamples = errors.New("no training samples")

// dimensions tracks the shared vector length across batches.
type dimensions struct {
	n int // -1 until the first vector arrives
}

func (d *dimensions) check(vectors [][]float64) error {
	for _, v := range vectors {
		if d.n < 0 {
			d.n = len(v)
			continue
		}
		if len(v) != d.n {
			return fmt.Errorf("vector has %d features, expected %d", len(v), d.n)
		}
	}
	return nil
}

// TwoPassTrainer keeps all vectors in memory.
type TwoPassTrainer struct {
	dims    dimensions
	byLabel map[string][][]float64
	total   int
}

// NewTwoPassTrainer creates an empty two-pass trainer.
func NewTwoPassTrainer() *TwoPassTrainer {
	return &TwoPassTrainer{dims: dimensions{n: -1}, byLabel: map[string][][]float64{}}
}

// Name returns the name of this strategy.
func (t *TwoPassTrainer) Name() string { return TwoPass.String() }

// Add buffers the batch under label.
func (t *TwoPassTrainer) Add(label string, vectors [][]float64) error {
	if err := t.dims.check(vectors); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	t.byLabel[label] = append(t.byLabel[label], vectors...)
	t.total += len(vectors)
	return nil
}

// Classifier computes the arithmetic mean per slot, then the population variance
// (not Bessel-corrected) floored at VarianceSmoothing.
func (t *TwoPassTrainer) Classifier() (*Classifier, error) {
	if t.total == 0 {
		return nil, errNoSamples
	}

	stats := make(map[string]classStats, len(t.byLabel))
	for label, vectors := range t.byLabel {
		n := float64(len(vectors))

		means := make([]float64, t.dims.n)
		for _, v := range vectors {
			for i, x := range v {
				means[i] += x
			}
		}
		for i := range means {
			means[i] /= n
		}

		variances := make([]float64, t.dims.n)
		for _, v := range vectors {
			for i, x := range v {
				d := x - means[i]
				variances[i] += d * d
			}
		}
		for i := range variances {
			variances[i] = math.Max(variances[i]/n, VarianceSmoothing)
		}

		stats[label] = classStats{
			prior:     n / float64(t.total),
			means:     means,
			variances: variances,
		}
	}

	log.Debug().
		Int("samples", t.total).
		Int("classes", len(stats)).
		Msg("Naive Bayes trained (two-pass)")
	return newFitted(stats, t.dims.n), nil
}

// accumulator holds running moments for one class.
type accumulator struct {
	count  int
	sums   []float64
	sumSqs []float64
}

// StreamingTrainer keeps per-class running sums and sums of squares.
// The single-pass variance formula is less stable numerically than the two-pass one;
// that is the price of bounded memory.
type StreamingTrainer struct {
	dims  dimensions
	accs  map[string]*accumulator
	total int
}

// NewStreamingTrainer creates an empty streaming trainer.
func NewStreamingTrainer() *StreamingTrainer {
	return &StreamingTrainer{dims: dimensions{n: -1}, accs: map[string]*accumulator{}}
}

// Name returns the name of this strategy.
func (t *StreamingTrainer) Name() string { return Streaming.String() }

// Add folds the batch into the running sums for label. The batch is not retained.
func (t *StreamingTrainer) Add(label string, vectors [][]float64) error {
	if err := t.dims.check(vectors); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	acc, ok := t.accs[label]
	if !ok {
		acc = &accumulator{
			sums:   make([]float64, t.dims.n),
			sumSqs: make([]float64, t.dims.n),
		}
		t.accs[label] = acc
	}

	for _, v := range vectors {
		for i, x := range v {
			acc.sums[i] += x
			acc.sumSqs[i] += x * x
		}
	}
	acc.count += len(vectors)
	t.total += len(vectors)
	return nil
}

// Classifier derives mean = sum/count and variance = max(sumSq/count - mean², floor).
func (t *StreamingTrainer) Classifier() (*Classifier, error) {
	if t.total == 0 {
		return nil, errNoSamples
	}

	stats := make(map[string]classStats, len(t.accs))
	for label, acc := range t.accs {
		n := float64(acc.count)
		means := make([]float64, t.dims.n)
		variances := make([]float64, t.dims.n)
		for i := range means {
			means[i] = acc.sums[i] / n
			variances[i] = math.Max(acc.sumSqs[i]/n-means[i]*means[i], VarianceSmoothing)
		}

		stats[label] = classStats{
			prior:     n / float64(t.total),
			means:     means,
			variances: variances,
		}
	}

	log.Debug().
		Int("samples", t.total).
		Int("classes", len(stats)).
		Msg("Naive Bayes trained (streaming)")
	return newFitted(stats, t.dims.n), nil
}
