package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chriscorrea/langsift/internal/bayes"
	"github.com/chriscorrea/langsift/internal/tfidf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedModel(t *testing.T) *Model {
	t.Helper()

	corpus := []string{"hola como estas", "buenos dias amigo", "hello how are you", "good morning friend"}
	labels := []string{"es", "es", "en", "en"}

	v := tfidf.NewVectorizer(tfidf.Options{MinN: 2, MaxN: 3, MaxFeatures: 40})
	vectors, err := v.FitTransform(corpus)
	require.NoError(t, err)

	c := bayes.NewClassifier()
	require.NoError(t, c.Fit(vectors, labels))

	m := New(v, c)
	m.Config = &Config{Languages: []string{"es", "en"}, TestSplit: 0.2, Method: "batch"}
	return m
}

// mutate round-trips the model through a generic JSON tree so tests can corrupt it
func mutate(t *testing.T, m *Model, fn func(doc map[string]any)) []byte {
	t.Helper()

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	fn(doc)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func section(doc map[string]any, name string) map[string]any {
	return doc[name].(map[string]any)
}

func TestParseValidModel(t *testing.T) {
	m := trainedModel(t)
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"es", "en"}, parsed.Languages())

	v, c, err := parsed.Components()
	require.NoError(t, err)
	assert.Equal(t, v.VocabularySize(), c.NumFeatures())
	assert.Equal(t, []string{"en", "es"}, c.Classes())
}

func TestComponentsReusedAfterParse(t *testing.T) {
	raw, err := json.Marshal(trainedModel(t))
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	v1, c1, err := parsed.Components()
	require.NoError(t, err)
	v2, c2, err := parsed.Components()
	require.NoError(t, err)
	assert.Same(t, v1, v2)
	assert.Same(t, c1, c2)

	// replacing a section rebuilds, and re-validates, the components
	classifier := *parsed.Classifier
	parsed.Classifier = &classifier
	_, c3, err := parsed.Components()
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)

	parsed.Classifier = &bayes.Data{
		ClassPriors:      map[string]float64{"en": 0},
		FeatureMeans:     classifier.FeatureMeans,
		FeatureVariances: classifier.FeatureVariances,
	}
	assert.Error(t, parsed.Validate())
}

func TestParseInvalidModel(t *testing.T) {
	m := trainedModel(t)

	tests := []struct {
		name      string
		data      func() []byte
		wantField string
	}{
		{
			name:      "malformed json",
			data:      func() []byte { return []byte(`{"vectorizer":`) },
			wantField: "",
		},
		{
			name:      "empty document",
			data:      func() []byte { return []byte(`{}`) },
			wantField: "vectorizer",
		},
		{
			name: "missing classifier",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { delete(doc, "classifier") })
			},
			wantField: "classifier",
		},
		{
			name: "wrong type",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { section(doc, "vectorizer")["minN"] = "two" })
			},
			wantField: "vectorizer.minN",
		},
		{
			name: "non-positive n-gram size",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { section(doc, "vectorizer")["minN"] = 0 })
			},
			wantField: "vectorizer.minN",
		},
		{
			name: "missing vocabulary",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { delete(section(doc, "vectorizer"), "vocabulary") })
			},
			wantField: "vectorizer.vocabulary",
		},
		{
			name: "no class priors",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { section(doc, "classifier")["classPriors"] = map[string]any{} })
			},
			wantField: "classifier.classPriors",
		},
		{
			name: "feature count disagrees with vocabulary",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) {
					section(section(doc, "classifier"), "featureMeans")["en"] = []float64{0.1}
				})
			},
			wantField: "classifier.featureMeans.en",
		},
		{
			name: "zero variance",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) {
					vars := section(section(doc, "classifier"), "featureVariances")["es"].([]any)
					vars[0] = 0.0
				})
			},
			wantField: "classifier",
		},
		{
			name: "bad model id",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { doc["modelId"] = "not-a-uuid" })
			},
			wantField: "modelId",
		},
		{
			name: "unknown training method",
			data: func() []byte {
				return mutate(t, m, func(doc map[string]any) { section(doc, "config")["method"] = "online" })
			},
			wantField: "config.method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data())
			require.Error(t, err)

			var invalid *InvalidModelError
			require.True(t, errors.As(err, &invalid), "got %T: %v", err, err)
			assert.Equal(t, tt.wantField, invalid.Field)
			assert.NotEmpty(t, invalid.Reason)
		})
	}
}

func TestInvalidModelErrorMessage(t *testing.T) {
	err := &InvalidModelError{Field: "vectorizer", Reason: "vectorizer is a required field"}
	assert.Equal(t, "invalid model: vectorizer: vectorizer is a required field", err.Error())

	err = &InvalidModelError{Reason: "malformed JSON"}
	assert.Equal(t, "invalid model: malformed JSON", err.Error())
}

func TestSaveAndLoad(t *testing.T) {
	m := trainedModel(t)
	trainedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.TrainedAt = &trainedAt
	m.ModelID = "0b9a43c5-8d8c-4a55-9d64-3d3c0f1b2a11"
	m.TrainingSamples = 4
	m.Metrics = &Metrics{
		Accuracy: 1,
		PerClassMetrics: map[string]ClassMetrics{
			"en": {TP: 1, Precision: 1, Recall: 1, F1: 1},
		},
	}

	dir := t.TempDir()
	pretty := filepath.Join(dir, "nested", "language-model.json")
	compact := filepath.Join(dir, "language-model.min.json")

	require.NoError(t, Save(pretty, m))
	require.NoError(t, SaveMinified(compact, m))

	prettyRaw, err := os.ReadFile(pretty)
	require.NoError(t, err)
	compactRaw, err := os.ReadFile(compact)
	require.NoError(t, err)
	assert.Contains(t, string(prettyRaw), "\n  \"vectorizer\"")
	assert.False(t, strings.Contains(string(compactRaw), "\n"))

	for _, path := range []string{pretty, compact} {
		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, m.ModelID, loaded.ModelID)
		assert.True(t, trainedAt.Equal(*loaded.TrainedAt))
		assert.Equal(t, *m.Vectorizer, *loaded.Vectorizer)
		assert.Equal(t, *m.Classifier, *loaded.Classifier)
		assert.Equal(t, m.Metrics.PerClassMetrics, loaded.Metrics.PerClassMetrics)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadWrapsInvalidModelError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vectorizer": {}}`), 0o644))

	_, err := Load(path)
	var invalid *InvalidModelError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, strings.HasPrefix(invalid.Field, "vectorizer"))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, trainedModel(t).Write(&buf))

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.NotNil(t, parsed.Classifier)
}
