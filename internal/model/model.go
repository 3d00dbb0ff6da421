// Package model defines the persisted language model and its validation.
//
// A model file is a single JSON document holding the fitted vectorizer, the fitted
// classifier and optional training metadata. Loading is strict: a document missing a
// required section, carrying a value of the wrong type, or whose sections disagree with
// each other (e.g. vocabulary size vs. classifier feature count) is rejected with an
// *InvalidModelError naming the offending field.
//
// Usage Example:
//
//	m, err := model.Load("models/language-model.json")
//	if err != nil {
//		var invalid *model.InvalidModelError
//		if errors.As(err, &invalid) {
//			log.Fatal().Str("field", invalid.Field).Msg(invalid.Reason)
//		}
//	}
//	vectorizer, classifier, err := m.Components()
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chriscorrea/langsift/internal/bayes"
	"github.com/chriscorrea/langsift/internal/tfidf"
)

// Model is the persisted form of a trained detector.
type Model struct {
	Vectorizer      *tfidf.Data `json:"vectorizer" validate:"required"`
	Classifier      *bayes.Data `json:"classifier" validate:"required"`
	Config          *Config     `json:"config,omitempty"`
	Metrics         *Metrics    `json:"metrics,omitempty"`
	ModelID         string      `json:"modelId,omitempty" validate:"omitempty,uuid"`
	TrainedAt       *time.Time  `json:"trainedAt,omitempty"`
	TrainingSamples int         `json:"trainingSamples,omitempty" validate:"gte=0"`
	TestSamples     int         `json:"testSamples,omitempty" validate:"gte=0"`

	built *components
}

// components caches the fitted sections rebuilt from a Model's data, keyed by the
// section pointers they were built from.
type components struct {
	vectorizerData *tfidf.Data
	classifierData *bayes.Data
	vectorizer     *tfidf.Vectorizer
	classifier     *bayes.Classifier
}

// Config records the settings a model was trained with.
type Config struct {
	Languages             []string          `json:"languages,omitempty" validate:"omitempty,dive,required"`
	TestSplit             float64           `json:"testSplit,omitempty" validate:"gte=0,lt=1"`
	MaxSamplesPerLanguage int               `json:"maxSamplesPerLanguage,omitempty" validate:"gte=0"`
	VectorizerOptions     VectorizerOptions `json:"vectorizerOptions"`
	Method                string            `json:"method,omitempty" validate:"omitempty,oneof=batch streaming"`
	Seed                  int64             `json:"seed,omitempty"`
}

// VectorizerOptions mirrors tfidf.Options in the persisted config.
type VectorizerOptions struct {
	MinN        int `json:"minN,omitempty" validate:"gte=0"`
	MaxN        int `json:"maxN,omitempty" validate:"gte=0"`
	MaxFeatures int `json:"maxFeatures,omitempty" validate:"gte=0"`
}

// Metrics holds the held-out evaluation of a model.
type Metrics struct {
	Accuracy        float64                   `json:"accuracy" validate:"gte=0,lte=1"`
	PerClassMetrics map[string]ClassMetrics   `json:"perClassMetrics,omitempty" validate:"omitempty,dive"`
	ConfusionMatrix map[string]map[string]int `json:"confusionMatrix,omitempty"`
}

// ClassMetrics are the per-language counts and scores.
type ClassMetrics struct {
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision" validate:"gte=0,lte=1"`
	Recall    float64 `json:"recall" validate:"gte=0,lte=1"`
	F1        float64 `json:"f1" validate:"gte=0,lte=1"`
}

// InvalidModelError reports a structurally invalid model document.
// Field is the JSON path of the offending value, empty when the document as a whole is unreadable.
type InvalidModelError struct {
	Field  string
	Reason string
}

func (e *InvalidModelError) Error() string {
	if e.Field == "" {
		return "invalid model: " + e.Reason
	}
	return fmt.Sprintf("invalid model: %s: %s", e.Field, e.Reason)
}

// New assembles a model from a fitted vectorizer and classifier.
func New(v *tfidf.Vectorizer, c *bayes.Classifier) *Model {
	vd := v.Data()
	cd := c.Data()
	return &Model{Vectorizer: &vd, Classifier: &cd}
}

// Parse decodes and validates a model document.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &InvalidModelError{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got JSON %s", typeErr.Type, typeErr.Value),
			}
		}
		return nil, &InvalidModelError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	return m, nil
}

// Components validates the model and rebuilds the fitted vectorizer and classifier.
// The result is cached until Vectorizer or Classifier is replaced, so a model
// validated by Parse is not rebuilt again when it is loaded. Callers must not refit
// the returned components.
func (m *Model) Components() (*tfidf.Vectorizer, *bayes.Classifier, error) {
	if b := m.built; b != nil && b.vectorizerData == m.Vectorizer && b.classifierData == m.Classifier {
		return b.vectorizer, b.classifier, nil
	}
	m.built = nil

	if err := m.validateSchema(); err != nil {
		return nil, nil, err
	}

	v, err := tfidf.FromData(*m.Vectorizer)
	if err != nil {
		return nil, nil, &InvalidModelError{Field: "vectorizer", Reason: err.Error()}
	}
	c, err := bayes.FromData(*m.Classifier)
	if err != nil {
		return nil, nil, &InvalidModelError{Field: "classifier", Reason: err.Error()}
	}

	m.built = &components{
		vectorizerData: m.Vectorizer,
		classifierData: m.Classifier,
		vectorizer:     v,
		classifier:     c,
	}
	return v, c, nil
}

// Validate checks the whole document: schema, cross-section consistency and the
// fitted state of both sections.
func (m *Model) Validate() error {
	_, _, err := m.Components()
	return err
}

// Languages returns the configured training languages, if recorded.
func (m *Model) Languages() []string {
	if m.Config == nil {
		return nil
	}
	return m.Config.Languages
}

// Write encodes the model as indented JSON.
func (m *Model) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Save writes the model as indented JSON, creating parent directories as needed.
func Save(path string, m *Model) error {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// SaveMinified writes the model as compact JSON.
func SaveMinified(path string, m *Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	return nil
}
