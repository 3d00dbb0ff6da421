package train

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscorrea/langsift/internal/bayes"
	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/tfidf"
)

func sampleData() map[string][]string {
	return map[string][]string{
		"es": {
			"hola como estas", "buenos dias amigo", "que tal todo bien", "me gusta mucho esto",
			"gracias por tu ayuda", "hasta luego nos vemos", "que tengas un buen dia",
			"necesito ayuda con esto", "puedes enviarme la informacion", "muchas gracias por todo",
			"donde estas ahora mismo", "cuando llegaste a casa", "porque no me llamaste",
			"vamos a comer algo", "te espero en la entrada", "no entiendo lo que dices",
			"me puedes repetir por favor", "estoy muy cansado hoy", "mañana tengo que trabajar",
			"el fin de semana vamos al cine",
		},
		"en": {
			"hello how are you", "good morning friend", "how is everything going", "i really like this",
			"thank you for your help", "see you later goodbye", "have a great day",
			"i need help with this", "can you send me the information", "thank you so much",
			"where are you right now", "when did you get home", "why didnt you call me",
			"lets go get something to eat", "ill wait for you at the entrance",
			"i dont understand what youre saying", "can you repeat that please", "i am very tired today",
			"i have to work tomorrow", "we are going to the movies this weekend",
		},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Vectorizer.MaxFeatures = 500
	opts.BatchSize = 7
	opts.Seed = 42
	return opts
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, []string{"es", "en"}, opts.Languages)
	assert.Equal(t, 0.2, opts.TestSplit)
	assert.Equal(t, 50000, opts.MaxSamplesPerLanguage)
	assert.Equal(t, tfidf.Options{MinN: 2, MaxN: 4, MaxFeatures: 3000}, opts.Vectorizer)
	assert.Equal(t, bayes.TwoPass, opts.Method)
}

func TestPrepare(t *testing.T) {
	data := sampleData()
	opts := testOptions()

	ds := Prepare(data, opts)

	// 20 per language, 16 train / 4 test each
	assert.Len(t, ds.TestTexts, 8)
	assert.Len(t, ds.TestLabels, 8)
	assert.Len(t, ds.TrainLabels, len(ds.TrainTexts))
	assert.GreaterOrEqual(t, len(ds.TrainTexts), 32)

	for _, text := range ds.TrainTexts {
		assert.GreaterOrEqual(t, len([]rune(text)), detect.MinTextLength)
	}

	// test samples are never augmented or shared with training originals
	trainSet := make(map[string]bool)
	for _, text := range ds.TrainTexts {
		trainSet[text] = true
	}
	for _, text := range ds.TestTexts {
		assert.False(t, trainSet[text], "%q leaked into training", text)
	}

	assert.Equal(t, ds, Prepare(data, opts), "same seed, same split")

	opts.Seed = 7
	assert.NotEqual(t, ds.TestTexts, Prepare(data, opts).TestTexts)
}

func TestPrepareFiltersAndCaps(t *testing.T) {
	data := map[string][]string{
		"es": {"ok", "😀😀", "hola que tal", "buenas noches", "nos vemos pronto", "que onda"},
	}
	opts := testOptions()
	opts.Languages = []string{"es"}
	opts.TestSplit = 0
	opts.MaxSamplesPerLanguage = 0

	ds := Prepare(data, opts)
	for _, text := range ds.TrainTexts {
		assert.NotEqual(t, "ok", text)
		assert.NotEqual(t, "😀😀", text)
	}
	assert.Contains(t, ds.TrainTexts, "hola que tal")
	assert.Empty(t, ds.TestTexts)

	opts.MaxSamplesPerLanguage = 2
	opts.TestSplit = 0.5
	ds = Prepare(data, opts)
	assert.LessOrEqual(t, len(ds.TestTexts), 1)
}

func TestTrain(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := testOptions()
	opts.Now = func() time.Time { return fixed }

	var stages []string
	opts.Progress = func(stage string) { stages = append(stages, stage) }

	m, err := Train(context.Background(), sampleData(), opts)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	_, err = uuid.Parse(m.ModelID)
	assert.NoError(t, err)
	require.NotNil(t, m.TrainedAt)
	assert.Equal(t, fixed, *m.TrainedAt)
	assert.Equal(t, 8, m.TestSamples)
	assert.Positive(t, m.TrainingSamples)

	require.NotNil(t, m.Config)
	assert.Equal(t, []string{"es", "en"}, m.Config.Languages)
	assert.Equal(t, "batch", m.Config.Method)
	assert.Equal(t, int64(42), m.Config.Seed)
	assert.Equal(t, 500, m.Config.VectorizerOptions.MaxFeatures)

	require.NotNil(t, m.Metrics)
	assert.GreaterOrEqual(t, m.Metrics.Accuracy, 0.0)
	assert.LessOrEqual(t, m.Metrics.Accuracy, 1.0)
	assert.Contains(t, m.Metrics.PerClassMetrics, "es")
	assert.Contains(t, m.Metrics.PerClassMetrics, "en")

	var total int
	for _, row := range m.Metrics.ConfusionMatrix {
		for _, n := range row {
			total += n
		}
	}
	assert.Equal(t, m.TestSamples, total)

	assert.Equal(t, []string{
		"Preparing datasets",
		"Fitting TF-IDF vectorizer",
		"Training batch Naive Bayes classifier",
		"Evaluating held-out samples",
	}, stages)

	// the trained model loads and detects
	d := detect.New()
	require.NoError(t, d.LoadModel(m))
	assert.ElementsMatch(t, []string{"en", "es"}, d.SupportedLanguages())
}

func TestTrainStreamingMatchesBatch(t *testing.T) {
	opts := testOptions()
	batch, err := Train(context.Background(), sampleData(), opts)
	require.NoError(t, err)

	opts.Method = bayes.Streaming
	opts.Reclaim = true
	streaming, err := Train(context.Background(), sampleData(), opts)
	require.NoError(t, err)

	assert.Equal(t, "streaming", streaming.Config.Method)
	assert.Equal(t, batch.Vectorizer, streaming.Vectorizer)
	for lang, means := range batch.Classifier.FeatureMeans {
		assert.InDeltaSlice(t, means, streaming.Classifier.FeatureMeans[lang], 1e-9)
		assert.InDeltaSlice(t, batch.Classifier.FeatureVariances[lang], streaming.Classifier.FeatureVariances[lang], 1e-9)
	}
}

func TestTrainErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   map[string][]string
		modify func(*Options)
		check  func(t *testing.T, err error)
	}{
		{
			name: "no data",
			data: map[string][]string{"es": {"ok"}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoData)
			},
		},
		{
			name:   "bad split",
			data:   sampleData(),
			modify: func(o *Options) { o.TestSplit = 1 },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "test split")
			},
		},
		{
			name:   "no languages",
			data:   sampleData(),
			modify: func(o *Options) { o.Languages = nil },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "language")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			if tt.modify != nil {
				tt.modify(&opts)
			}
			_, err := Train(context.Background(), tt.data, opts)
			tt.check(t, err)
		})
	}
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, sampleData(), testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate(t *testing.T) {
	v := tfidf.NewVectorizer(tfidf.Options{MinN: 2, MaxN: 2, MaxFeatures: 10})
	v.Fit([]string{"aaaa", "bbbb"})

	va, err := v.Transform("aaaa")
	require.NoError(t, err)
	vb, err := v.Transform("bbbb")
	require.NoError(t, err)

	c := bayes.NewClassifier()
	require.NoError(t, c.Fit([][]float64{va, vb}, []string{"es", "en"}))

	// the second "aaaa" is labelled en, so es gains a false positive
	metrics, err := Evaluate(v, c, []string{"aaaa", "aaaa", "bbbb"}, []string{"es", "en", "en"}, []string{"es", "en"})
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3.0, metrics.Accuracy, 1e-12)
	assert.Equal(t, 1, metrics.ConfusionMatrix["en"]["es"])
	assert.Equal(t, 1, metrics.ConfusionMatrix["en"]["en"])
	assert.Equal(t, 1, metrics.ConfusionMatrix["es"]["es"])
	assert.Equal(t, 0, metrics.ConfusionMatrix["es"]["en"])

	es := metrics.PerClassMetrics["es"]
	assert.Equal(t, 1, es.TP)
	assert.Equal(t, 1, es.FP)
	assert.InDelta(t, 0.5, es.Precision, 1e-12)
	assert.InDelta(t, 1.0, es.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, es.F1, 1e-12)

	en := metrics.PerClassMetrics["en"]
	assert.Equal(t, 1, en.FN)
	assert.InDelta(t, 1.0, en.Precision, 1e-12)
	assert.InDelta(t, 0.5, en.Recall, 1e-12)

	_, err = Evaluate(v, c, []string{"aaaa"}, nil, nil)
	assert.Error(t, err)

	empty, err := Evaluate(v, c, nil, nil, []string{"es", "en"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Accuracy)
	assert.Equal(t, 0.0, empty.PerClassMetrics["es"].F1)
}
