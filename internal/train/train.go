// Package train builds a language model from labelled samples.
//
// Training follows a fixed recipe: per language, shuffle with a seeded source, cap
// the sample count, split off a held-out portion, normalize every sample and drop
// those shorter than detect.MinTextLength, and augment the training portion with
// normalized, punctuation-free and abbreviated variants. The TF-IDF vectorizer is
// fitted on all training texts, then the classifier is fed one language at a time in
// fixed-size batches through a bayes.Trainer, so the streaming strategy never holds
// more than one batch of vectors. The held-out portion is scored into Metrics and the
// whole lot is assembled into a model.Model.
package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/bayes"
	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/model"
	"github.com/chriscorrea/langsift/internal/normalize"
	"github.com/chriscorrea/langsift/internal/tfidf"
)

const (
	DefaultTestSplit             = 0.2
	DefaultMaxSamplesPerLanguage = 50000
	DefaultMaxFeatures           = 3000
	DefaultBatchSize             = 1000
)

// DefaultLanguages is the training set used when none is given.
var DefaultLanguages = []string{"es", "en"}

// ErrNoData is returned when no language contributes a usable training sample.
var ErrNoData = errors.New("no training data")

// Options controls a training run.
type Options struct {
	Languages             []string
	TestSplit             float64
	MaxSamplesPerLanguage int // 0 keeps every sample
	Vectorizer            tfidf.Options
	Method                bayes.TrainingMethod
	BatchSize             int
	Seed                  int64
	// Reclaim returns freed memory to the OS after each language
	Reclaim bool
	// Progress, when set, is told the name of each stage as it begins
	Progress func(stage string)
	// Now stamps the model; time.Now when nil
	Now func() time.Time
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		Languages:             append([]string(nil), DefaultLanguages...),
		TestSplit:             DefaultTestSplit,
		MaxSamplesPerLanguage: DefaultMaxSamplesPerLanguage,
		Vectorizer: tfidf.Options{
			MinN:        tfidf.DefaultMinN,
			MaxN:        tfidf.DefaultMaxN,
			MaxFeatures: DefaultMaxFeatures,
		},
		Method:    bayes.TwoPass,
		BatchSize: DefaultBatchSize,
		Seed:      1,
	}
}

func (o Options) validate() error {
	if len(o.Languages) == 0 {
		return errors.New("at least one language is required")
	}
	if o.TestSplit < 0 || o.TestSplit >= 1 {
		return fmt.Errorf("test split %v outside [0, 1)", o.TestSplit)
	}
	if o.MaxSamplesPerLanguage < 0 {
		return fmt.Errorf("max samples per language %d is negative", o.MaxSamplesPerLanguage)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("batch size %d is negative", o.BatchSize)
	}
	return nil
}

func (o Options) stage(name string) {
	log.Debug().Str("stage", name).Msg("Training stage")
	if o.Progress != nil {
		o.Progress(name)
	}
}

// Dataset is the prepared train/test split.
type Dataset struct {
	TrainTexts  []string
	TrainLabels []string
	TestTexts   []string
	TestLabels  []string
}

// Prepare shuffles, caps, splits, normalizes and augments samples per language.
// Languages are visited in opts.Languages order, each with its own seeded shuffle,
// so the result depends only on the inputs and the seed.
func Prepare(data map[string][]string, opts Options) Dataset {
	var ds Dataset

	for i, lang := range opts.Languages {
		texts := append([]string(nil), data[lang]...)
		rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
		rng.Shuffle(len(texts), func(a, b int) { texts[a], texts[b] = texts[b], texts[a] })

		if opts.MaxSamplesPerLanguage > 0 && len(texts) > opts.MaxSamplesPerLanguage {
			texts = texts[:opts.MaxSamplesPerLanguage]
		}

		splitIdx := int(float64(len(texts)) * (1 - opts.TestSplit))
		trainPortion, testPortion := texts[:splitIdx], texts[splitIdx:]

		var trained, tested int
		for _, text := range trainPortion {
			normalized := normalize.Text(text)
			if utf8.RuneCountInString(normalized) < detect.MinTextLength {
				continue
			}
			for _, variant := range normalize.Augment(normalized, lang) {
				ds.TrainTexts = append(ds.TrainTexts, variant)
				ds.TrainLabels = append(ds.TrainLabels, lang)
				trained++
			}
		}
		for _, text := range testPortion {
			normalized := normalize.Text(text)
			if utf8.RuneCountInString(normalized) < detect.MinTextLength {
				continue
			}
			ds.TestTexts = append(ds.TestTexts, normalized)
			ds.TestLabels = append(ds.TestLabels, lang)
			tested++
		}

		log.Debug().
			Str("language", lang).
			Int("loaded", len(data[lang])).
			Int("train", trained).
			Int("test", tested).
			Msg("Language prepared")
	}
	return ds
}

// Train builds, evaluates and assembles a model from samples keyed by language.
func Train(ctx context.Context, data map[string][]string, opts Options) (*model.Model, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid training options: %w", err)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	opts.stage("Preparing datasets")
	ds := Prepare(data, opts)
	if len(ds.TrainTexts) == 0 {
		return nil, ErrNoData
	}

	opts.stage("Fitting TF-IDF vectorizer")
	vectorizer := tfidf.NewVectorizer(opts.Vectorizer)
	vectorizer.Fit(ds.TrainTexts)

	opts.stage("Training " + opts.Method.String() + " Naive Bayes classifier")
	classifier, err := fitClassifier(ctx, vectorizer, ds, opts)
	if err != nil {
		return nil, err
	}

	opts.stage("Evaluating held-out samples")
	metrics, err := Evaluate(vectorizer, classifier, ds.TestTexts, ds.TestLabels, opts.Languages)
	if err != nil {
		return nil, err
	}

	m := model.New(vectorizer, classifier)
	trainedAt := now().UTC()
	m.ModelID = uuid.NewString()
	m.TrainedAt = &trainedAt
	m.TrainingSamples = len(ds.TrainTexts)
	m.TestSamples = len(ds.TestTexts)
	m.Metrics = &metrics
	m.Config = &model.Config{
		Languages:             append([]string(nil), opts.Languages...),
		TestSplit:             opts.TestSplit,
		MaxSamplesPerLanguage: opts.MaxSamplesPerLanguage,
		VectorizerOptions: model.VectorizerOptions{
			MinN:        vectorizer.MinN(),
			MaxN:        vectorizer.MaxN(),
			MaxFeatures: vectorizer.MaxFeatures(),
		},
		Method: opts.Method.String(),
		Seed:   opts.Seed,
	}

	log.Info().
		Str("modelId", m.ModelID).
		Int("trainingSamples", m.TrainingSamples).
		Int("testSamples", m.TestSamples).
		Int("vocabulary", vectorizer.VocabularySize()).
		Float64("accuracy", metrics.Accuracy).
		Msg("Model trained")
	return m, nil
}

// fitClassifier feeds the training texts to a Trainer one language at a time,
// vectorizing at most BatchSize texts per Add.
func fitClassifier(ctx context.Context, v *tfidf.Vectorizer, ds Dataset, opts Options) (*bayes.Classifier, error) {
	byLabel := make(map[string][]string)
	for i, text := range ds.TrainTexts {
		byLabel[ds.TrainLabels[i]] = append(byLabel[ds.TrainLabels[i]], text)
	}

	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	trainer := bayes.NewTrainer(opts.Method)
	for _, label := range labels {
		texts := byLabel[label]
		for start := 0; start < len(texts); start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			end := min(start+opts.BatchSize, len(texts))
			batch := make([][]float64, 0, end-start)
			for _, text := range texts[start:end] {
				vec, err := v.Transform(text)
				if err != nil {
					return nil, fmt.Errorf("failed to vectorize training sample: %w", err)
				}
				batch = append(batch, vec)
			}
			if err := trainer.Add(label, batch); err != nil {
				return nil, fmt.Errorf("failed to add %s batch: %w", label, err)
			}
		}

		if opts.Reclaim {
			debug.FreeOSMemory()
		}
		log.Debug().Str("language", label).Int("samples", len(texts)).Str("trainer", trainer.Name()).Msg("Language fed to trainer")
	}

	classifier, err := trainer.Classifier()
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	return classifier, nil
}

// Evaluate scores the classifier on held-out texts. The confusion matrix and
// per-class metrics cover every language in languages plus any label seen.
func Evaluate(v *tfidf.Vectorizer, c *bayes.Classifier, texts, labels, languages []string) (model.Metrics, error) {
	if len(texts) != len(labels) {
		return model.Metrics{}, fmt.Errorf("got %d texts but %d labels", len(texts), len(labels))
	}

	classes := append([]string(nil), languages...)
	seen := make(map[string]bool, len(classes))
	for _, l := range classes {
		seen[l] = true
	}
	for _, l := range append(append([]string(nil), labels...), c.Classes()...) {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}

	confusion := make(map[string]map[string]int, len(classes))
	counts := make(map[string]*model.ClassMetrics, len(classes))
	for _, actual := range classes {
		confusion[actual] = make(map[string]int, len(classes))
		for _, predicted := range classes {
			confusion[actual][predicted] = 0
		}
		counts[actual] = &model.ClassMetrics{}
	}

	correct := 0
	for i, text := range texts {
		vec, err := v.Transform(text)
		if err != nil {
			return model.Metrics{}, fmt.Errorf("failed to vectorize test sample: %w", err)
		}
		p, err := c.Predict(vec)
		if err != nil {
			return model.Metrics{}, fmt.Errorf("failed to predict test sample: %w", err)
		}

		actual := labels[i]
		confusion[actual][p.Label]++
		if p.Label == actual {
			correct++
			counts[actual].TP++
			continue
		}
		counts[actual].FN++
		counts[p.Label].FP++
	}

	perClass := make(map[string]model.ClassMetrics, len(classes))
	for _, l := range classes {
		m := *counts[l]
		m.Precision = ratio(m.TP, m.TP+m.FP)
		m.Recall = ratio(m.TP, m.TP+m.FN)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		perClass[l] = m
	}

	return model.Metrics{
		Accuracy:        ratio(correct, len(texts)),
		PerClassMetrics: perClass,
		ConfusionMatrix: confusion,
	}, nil
}

// ratio is num/den, or 0 when den is 0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
