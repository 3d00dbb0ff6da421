// Package detect fuses the statistical classifier and the slang matcher into one
// language decision.
//
// A Detector owns one loaded model. Detection runs through a fixed sequence of branches:
// empty input, short text (slang first), very short normalized text (slang only, halved
// confidence) and finally the statistical path, where a strong slang signal may
// override the classifier or a weak classifier may be blended with the slang signal.
// Every result carries a Source naming the branch that produced it.
//
// Usage Example:
//
//	d := detect.New()
//	if err := d.LoadFromFile("models/language-model.json"); err != nil {
//		return err
//	}
//	res, err := d.Detect("jajaja que onda wey")
//	// res.Language == "es", res.Source == detect.SourceSlang
//
// Loading builds the vectorizer and classifier completely before publishing them, so
// Detect never observes a half-loaded model and needs no locks.
package detect

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/chriscorrea/langsift/internal/bayes"
	"github.com/chriscorrea/langsift/internal/model"
	"github.com/chriscorrea/langsift/internal/normalize"
	"github.com/chriscorrea/langsift/internal/slang"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Decision thresholds.
const (
	ShortTextThreshold     = 15  // trimmed runes at or below which slang is tried first
	MinTextLength          = 3   // normalized runes below which the classifier is skipped
	SlangMinConfidence     = 0.5 // slang confidence needed to answer short text alone
	LowConfidenceThreshold = 0.6 // classifier confidence below which slang may be blended in
	ReliableThreshold      = 0.7 // results strictly above this are reliable
)

// DefaultFallbackLanguage is reported when there is nothing to detect.
const DefaultFallbackLanguage = "en"

// ErrModelNotLoaded is returned by Detect before a model has been loaded.
var ErrModelNotLoaded = errors.New("detect: model must be loaded before detection")

// Source names the branch that produced a Result.
type Source string

const (
	SourceSlang         Source = "slang"
	SourceSlangOverride Source = "slang-override"
	SourceCombined      Source = "combined"
	SourceML            Source = "ml"
)

// Result is the outcome of detecting one text.
type Result struct {
	Language      string             `json:"language"`
	Confidence    float64            `json:"confidence"`
	IsReliable    bool               `json:"isReliable"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Source        Source             `json:"source,omitempty"`
}

// vectorizer and classifier are the parts of the fitted model the arbiter calls.
type vectorizer interface {
	Transform(text string) ([]float64, error)
}

type classifier interface {
	Predict(vector []float64) (bayes.Prediction, error)
	Classes() []string
}

// state is one immutable loaded model.
type state struct {
	vectorizer vectorizer
	classifier classifier
	languages  []string
	config     *model.Config
	modelID    string
}

// Detector detects the language of informal text. It is safe for concurrent use.
type Detector struct {
	state    atomic.Pointer[state]
	matcher  *slang.Matcher
	fallback string
	logger   zerolog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMatcher replaces the embedded slang dictionaries.
func WithMatcher(m *slang.Matcher) Option {
	return func(d *Detector) { d.matcher = m }
}

// WithFallbackLanguage sets the language reported for empty or undetectable input.
func WithFallbackLanguage(lang string) Option {
	return func(d *Detector) {
		if lang != "" {
			d.fallback = lang
		}
	}
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New creates a Detector without a model.
func New(opts ...Option) *Detector {
	d := &Detector{
		fallback: DefaultFallbackLanguage,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.matcher == nil {
		d.matcher = slang.Default()
	}
	return d
}

// LoadModel validates m, rebuilds its components and atomically replaces any
// previously loaded model. On error the previous model stays in place.
func (d *Detector) LoadModel(m *model.Model) error {
	if m == nil {
		return &model.InvalidModelError{Reason: "missing vectorizer or classifier"}
	}

	v, c, err := m.Components()
	if err != nil {
		return err
	}

	d.store(v, c, m.Config, m.ModelID)
	d.logger.Info().
		Strs("languages", c.Classes()).
		Int("features", v.VocabularySize()).
		Str("modelId", m.ModelID).
		Msg("Language detector loaded")
	return nil
}

// LoadFromFile reads, validates and loads a model file.
func (d *Detector) LoadFromFile(path string) error {
	m, err := model.Load(path)
	if err != nil {
		return err
	}
	return d.LoadModel(m)
}

func (d *Detector) store(v vectorizer, c classifier, cfg *model.Config, modelID string) {
	d.state.Store(&state{
		vectorizer: v,
		classifier: c,
		languages:  c.Classes(),
		config:     cfg,
		modelID:    modelID,
	})
}

// IsLoaded reports whether a model is loaded.
func (d *Detector) IsLoaded() bool { return d.state.Load() != nil }

// SupportedLanguages returns the classifier's languages, or an empty slice before loading.
func (d *Detector) SupportedLanguages() []string {
	st := d.state.Load()
	if st == nil {
		return []string{}
	}
	out := make([]string, len(st.languages))
	copy(out, st.languages)
	return out
}

// ModelID returns the id of the loaded model, if it has one.
func (d *Detector) ModelID() string {
	if st := d.state.Load(); st != nil {
		return st.modelID
	}
	return ""
}

// Config returns the training config recorded in the loaded model, if any.
func (d *Detector) Config() *model.Config {
	if st := d.state.Load(); st != nil {
		return st.config
	}
	return nil
}

// Detect returns the most likely language of text. Noisy or meaningless input yields a
// low-confidence result, never an error; the only error is ErrModelNotLoaded.
func (d *Detector) Detect(text string) (Result, error) {
	st := d.state.Load()
	if st == nil {
		return Result{}, ErrModelNotLoaded
	}
	return d.detect(st, text)
}

// DetectBatch detects every text against the same loaded model.
func (d *Detector) DetectBatch(texts []string) ([]Result, error) {
	st := d.state.Load()
	if st == nil {
		return nil, ErrModelNotLoaded
	}

	results := make([]Result, len(texts))
	for i, text := range texts {
		res, err := d.detect(st, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		results[i] = res
	}
	return results, nil
}

func (d *Detector) detect(st *state, text string) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return d.emptyResult(), nil
	}
	normalized := normalize.Text(trimmed)

	if utf8.RuneCountInString(trimmed) <= ShortTextThreshold {
		if m, ok := d.matcher.Match(trimmed); ok && m.Confidence >= SlangMinConfidence {
			return slangResult(m, SourceSlang), nil
		}
	}

	if utf8.RuneCountInString(normalized) < MinTextLength {
		if m, ok := d.matcher.Match(trimmed); ok {
			return Result{
				Language:   m.Language,
				Confidence: m.Confidence * 0.5,
				IsReliable: false,
				Source:     SourceSlang,
			}, nil
		}
		return d.emptyResult(), nil
	}

	return d.detectStatistical(st, trimmed, normalized)
}

// detectStatistical classifies the normalized text and reconciles it with the slang signal.
func (d *Detector) detectStatistical(st *state, trimmed, normalized string) (Result, error) {
	vector, err := st.vectorizer.Transform(normalized)
	if err != nil {
		return Result{}, fmt.Errorf("failed to vectorize text: %w", err)
	}
	prediction, err := st.classifier.Predict(vector)
	if err != nil {
		return Result{}, fmt.Errorf("failed to classify text: %w", err)
	}

	m, hasSlang := d.matcher.Match(trimmed)

	if hasSlang && slangOverrides(m, prediction) {
		res := slangResult(m, SourceSlangOverride)
		res.Probabilities = prediction.Probabilities
		d.logger.Debug().
			Str("slang", m.Language).
			Str("ml", prediction.Label).
			Msg("slang overrides classifier")
		return res, nil
	}

	if hasSlang && prediction.Confidence < LowConfidenceThreshold && m.Confidence > SlangMinConfidence {
		confidence := (prediction.Confidence + m.Confidence) / 2
		return Result{
			Language:      m.Language,
			Confidence:    confidence,
			IsReliable:    confidence > ReliableThreshold,
			Probabilities: prediction.Probabilities,
			Source:        SourceCombined,
		}, nil
	}

	return Result{
		Language:      prediction.Label,
		Confidence:    prediction.Confidence,
		IsReliable:    prediction.Confidence > ReliableThreshold,
		Probabilities: prediction.Probabilities,
		Source:        SourceML,
	}, nil
}

// slangOverrides requires the slang winner to disagree with the classifier, score at
// least 2, and beat the classifier's language by more than one point.
func slangOverrides(m slang.Match, p bayes.Prediction) bool {
	if m.Language == p.Label {
		return false
	}
	strength := m.Score()
	opposing := m.Scores[p.Label]
	return strength >= 2 && strength > opposing+1
}

func slangResult(m slang.Match, source Source) Result {
	return Result{
		Language:   m.Language,
		Confidence: m.Confidence,
		IsReliable: m.Confidence > ReliableThreshold,
		Source:     source,
	}
}

func (d *Detector) emptyResult() Result {
	return Result{Language: d.fallback}
}
