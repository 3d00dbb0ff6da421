package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscorrea/langsift/internal/corpus"
	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/fetch"
	"github.com/chriscorrea/langsift/internal/model"
	"github.com/chriscorrea/langsift/internal/train"
)

var (
	spanish = []string{
		"hola como estas", "buenos dias amigo", "que tal todo bien", "me gusta mucho esto",
		"gracias por tu ayuda", "hasta luego nos vemos", "que tengas un buen dia",
		"necesito ayuda con esto", "puedes enviarme la informacion", "muchas gracias por todo",
		"donde estas ahora mismo", "cuando llegaste a casa", "porque no me llamaste",
		"vamos a comer algo", "te espero en la entrada", "no entiendo lo que dices",
		"me puedes repetir por favor", "estoy muy cansado hoy", "mañana tengo que trabajar",
		"el fin de semana vamos al cine",
	}
	english = []string{
		"hello how are you", "good morning friend", "how is everything going", "i really like this",
		"thank you for your help", "see you later goodbye", "have a great day",
		"i need help with this", "can you send me the information", "thank you so much",
		"where are you right now", "when did you get home", "why didnt you call me",
		"lets go get something to eat", "ill wait for you at the entrance",
		"i dont understand what youre saying", "can you repeat that please", "i am very tired today",
		"i have to work tomorrow", "we are going to the movies this weekend",
	}
)

func trainingOptions() train.Options {
	opts := train.DefaultOptions()
	opts.Vectorizer.MaxFeatures = 500
	opts.BatchSize = 8
	opts.Seed = 42
	return opts
}

// modelFile trains a small es/en model and saves it under a temp dir.
func modelFile(t *testing.T) string {
	t.Helper()
	m, err := train.Train(context.Background(), map[string][]string{"es": spanish, "en": english}, trainingOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, model.Save(path, m))
	return path
}

func loadedDetector(t *testing.T) *detect.Detector {
	t.Helper()
	d := detect.New()
	require.NoError(t, d.LoadFromFile(modelFile(t)))
	return d
}

func TestOutputFormatString(t *testing.T) {
	assert.Equal(t, "Text", Text.String())
	assert.Equal(t, "JSON", JSON.String())
	assert.Equal(t, "Unknown", OutputFormat(9).String())
}

func TestDetect(t *testing.T) {
	path := modelFile(t)

	t.Run("text output", func(t *testing.T) {
		var out bytes.Buffer
		err := Detect(context.Background(), DetectConfig{
			ModelPath: path,
			Texts:     []string{"jajaja wey", "lol thanks"},
		}, &out)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "es\t"), lines[0])
		assert.True(t, strings.HasSuffix(lines[0], "\tslang\tjajaja wey"), lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "en\t"), lines[1])
	})

	t.Run("json output", func(t *testing.T) {
		var out bytes.Buffer
		err := Detect(context.Background(), DetectConfig{
			ModelPath:     path,
			Texts:         []string{"i have to work tomorrow", ""},
			Output:        JSON,
			Probabilities: true,
		}, &out)
		require.NoError(t, err)

		var got []Detection
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "i have to work tomorrow", got[0].Text)
		assert.Len(t, got[0].Probabilities, 2)

		// empty input falls back without a source
		assert.Equal(t, detect.DefaultFallbackLanguage, got[1].Language)
		assert.Zero(t, got[1].Confidence)
	})

	t.Run("probabilities dropped by default", func(t *testing.T) {
		var out bytes.Buffer
		err := Detect(context.Background(), DetectConfig{
			ModelPath: path,
			Texts:     []string{"i have to work tomorrow"},
			Output:    JSON,
		}, &out)
		require.NoError(t, err)
		assert.NotContains(t, out.String(), "probabilities")
	})

	t.Run("fallback language", func(t *testing.T) {
		var out bytes.Buffer
		err := Detect(context.Background(), DetectConfig{
			ModelPath:        path,
			FallbackLanguage: "es",
			Texts:            []string{"   "},
		}, &out)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out.String(), "es\t0.000\tunreliable\t-\t"), out.String())
	})
}

func TestDetectSources(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "messages.txt")
	require.NoError(t, os.WriteFile(file, []byte("jajaja wey\n\n  lol thanks  \n"), 0o644))

	var out, stderr bytes.Buffer
	err := Detect(context.Background(), DetectConfig{
		Detector: loadedDetector(t),
		Texts:    []string{"hola"},
		Sources:  []string{file, "-", filepath.Join(dir, "missing.txt")},
		Fetcher:  fetch.New(fetch.WithStdin(strings.NewReader("see you later goodbye\n"))),
		Stderr:   &stderr,
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "\thola"))
	assert.True(t, strings.HasSuffix(lines[1], "\tjajaja wey"))
	assert.True(t, strings.HasSuffix(lines[2], "\tlol thanks"))
	assert.True(t, strings.HasSuffix(lines[3], "\tsee you later goodbye"))
	assert.Contains(t, stderr.String(), "missing.txt")
}

func TestDetectErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  DetectConfig
		want string
	}{
		{
			name: "nothing to detect",
			cfg:  DetectConfig{ModelPath: filepath.Join(dir, "model.json")},
			want: "no text to detect",
		},
		{
			name: "no readable source",
			cfg: DetectConfig{
				ModelPath: filepath.Join(dir, "model.json"),
				Sources:   []string{filepath.Join(dir, "missing.txt")},
				Quiet:     true,
			},
			want: "no source could be read",
		},
		{
			name: "missing model",
			cfg:  DetectConfig{ModelPath: filepath.Join(dir, "model.json"), Texts: []string{"hola"}},
			want: "failed to load model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Detect(context.Background(), tt.cfg, &bytes.Buffer{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFormatProbabilities(t *testing.T) {
	assert.Equal(t, "en=0.250 es=0.750", formatProbabilities(map[string]float64{"es": 0.75, "en": 0.25}))
	assert.Equal(t, "", formatProbabilities(nil))
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	data, err := json.Marshal(spanish)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.txt"), []byte(strings.Join(english, "\n")), 0o644))
	return dir
}

func TestTrain(t *testing.T) {
	out := filepath.Join(t.TempDir(), "models", "language-model.json")

	var summary, progress bytes.Buffer
	res, err := Train(context.Background(), TrainConfig{
		DataDir:  writeCorpus(t),
		Output:   out,
		Corpus:   corpus.Options{MinLength: corpus.DefaultMinLength, MaxLength: corpus.DefaultMaxLength},
		Training: trainingOptions(),
		Progress: &progress,
	}, &summary)
	require.NoError(t, err)

	assert.Equal(t, out, res.ModelPath)
	assert.Equal(t, strings.TrimSuffix(out, ".json")+".min.json", res.MinifiedPath)
	assert.Positive(t, res.MinifiedSize)

	pretty, err := os.Stat(res.ModelPath)
	require.NoError(t, err)
	assert.Less(t, res.MinifiedSize, pretty.Size())

	loaded, err := model.Load(res.MinifiedPath)
	require.NoError(t, err)
	assert.Equal(t, res.Model.ModelID, loaded.ModelID)

	assert.Equal(t, strings.Join([]string{
		"Loading corpus...",
		"Preparing datasets...",
		"Fitting TF-IDF vectorizer...",
		"Training batch Naive Bayes classifier...",
		"Evaluating held-out samples...",
		"Saving model...",
	}, "\n")+"\n", progress.String())

	assert.Contains(t, summary.String(), "Test samples: 8")
	assert.Contains(t, summary.String(), "Accuracy: ")
	assert.Contains(t, summary.String(), "  es: P=")
	assert.Contains(t, summary.String(), "Confusion matrix")
	assert.Contains(t, summary.String(), "Model saved to: "+out)
}

func TestTrainQuiet(t *testing.T) {
	var progress bytes.Buffer
	_, err := Train(context.Background(), TrainConfig{
		DataDir:  writeCorpus(t),
		Output:   filepath.Join(t.TempDir(), "model.json"),
		Training: trainingOptions(),
		Quiet:    true,
		Progress: &progress,
	}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, progress.String())
}

func TestTrainErrors(t *testing.T) {
	_, err := Train(context.Background(), TrainConfig{DataDir: t.TempDir(), Training: trainingOptions()}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no output path")

	_, err = Train(context.Background(), TrainConfig{
		DataDir:  t.TempDir(),
		Output:   filepath.Join(t.TempDir(), "model.json"),
		Training: trainingOptions(),
		Quiet:    true,
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, train.ErrNoData)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es.json"), []byte("{not json"), 0o644))
	_, err = Train(context.Background(), TrainConfig{
		DataDir:  dir,
		Output:   filepath.Join(t.TempDir(), "model.json"),
		Training: trainingOptions(),
		Quiet:    true,
	}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to load corpus")
}

func TestMinifiedPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"models/language-model.json", "models/language-model.min.json"},
		{"model", "model.min"},
		{"out/m.v2.json", "out/m.v2.min.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, minifiedPath(tt.in))
	}
}

func TestWriteMetrics(t *testing.T) {
	var out bytes.Buffer
	err := writeMetrics(&out, []string{"es", "en"}, model.Metrics{
		Accuracy: 0.75,
		PerClassMetrics: map[string]model.ClassMetrics{
			"es": {Precision: 1, Recall: 0.5, F1: 2.0 / 3.0},
			"en": {Precision: 0.5, Recall: 1, F1: 2.0 / 3.0},
		},
		ConfusionMatrix: map[string]map[string]int{
			"es": {"es": 1, "en": 1},
			"en": {"en": 2},
		},
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Accuracy: 75.00%")
	assert.Contains(t, got, "  es: P=100.0% R=50.0% F1=66.7%")
	assert.Contains(t, got, "  en: P=50.0% R=100.0% F1=66.7%")
	assert.Regexp(t, `es\s+1\s+1`, got)
	assert.Regexp(t, `en\s+0\s+2`, got)
}

func writeCases(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.tsv")
	content := "# text\tlanguage\njajaja wey\tes\nlol thanks\ten\nc'est la vie mon ami\tfr\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEvaluate(t *testing.T) {
	d := loadedDetector(t)

	var out bytes.Buffer
	res, err := Evaluate(context.Background(), EvaluateConfig{
		Detector:  d,
		CasesPath: writeCases(t),
		Baseline:  true,
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "es"}, res.SupportedLanguages)
	assert.Equal(t, 2, res.Report.Total)
	assert.Equal(t, 1, res.Report.Skipped)
	assert.Equal(t, 2, res.Report.Correct)
	require.NotNil(t, res.Baseline)
	assert.Equal(t, "whatlanggo", res.Baseline.Name)

	got := out.String()
	assert.Contains(t, got, "Supported languages: en, es")
	assert.Contains(t, got, `✓ "jajaja wey" -> es`)
	assert.Contains(t, got, "langsift accuracy: 100.00% (2/2), 1 skipped")
	assert.Contains(t, got, "=== Baseline ===")
	assert.Contains(t, got, "whatlanggo accuracy: ")
}

func TestEvaluateDefaultCasesQuiet(t *testing.T) {
	var out bytes.Buffer
	res, err := Evaluate(context.Background(), EvaluateConfig{
		Detector: loadedDetector(t),
		Quiet:    true,
	}, &out)
	require.NoError(t, err)

	// fr cases are skipped by an es/en model
	assert.Positive(t, res.Report.Skipped)
	assert.Equal(t, len(train.DefaultCases()), res.Report.Total+res.Report.Skipped)
	assert.NotContains(t, out.String(), "✓")
	assert.NotContains(t, out.String(), "Errors (")
	assert.Nil(t, res.Baseline)
}

func TestEvaluateJSON(t *testing.T) {
	var out bytes.Buffer
	_, err := Evaluate(context.Background(), EvaluateConfig{
		Detector:  loadedDetector(t),
		CasesPath: writeCases(t),
		Output:    JSON,
	}, &out)
	require.NoError(t, err)

	var got EvaluateResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "langsift", got.Report.Name)
	assert.Len(t, got.Report.Results, 2)
	assert.Nil(t, got.Baseline)
}

func TestEvaluateErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.tsv")
	require.NoError(t, os.WriteFile(bad, []byte("no tab here\n"), 0o644))

	_, err := Evaluate(context.Background(), EvaluateConfig{Detector: loadedDetector(t), CasesPath: bad}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "line 1")

	_, err = Evaluate(context.Background(), EvaluateConfig{ModelPath: filepath.Join(t.TempDir(), "none.json")}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to load model")
}

func TestEvaluateInteractive(t *testing.T) {
	var out bytes.Buffer
	_, err := Evaluate(context.Background(), EvaluateConfig{
		Detector:    loadedDetector(t),
		CasesPath:   writeCases(t),
		Interactive: true,
		Stdin:       strings.NewReader("jajaja wey\n\ni have to work tomorrow\n"),
	}, &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "=== Interactive Mode ===")
	assert.Contains(t, got, "  Language: es (")
	assert.Equal(t, 2, strings.Count(got, "  Reliable: "))
	assert.Contains(t, got, "  Probabilities: en=")
}

func TestInteractiveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Interactive(ctx, loadedDetector(t), strings.NewReader("hola\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLanguages(t *testing.T) {
	path := modelFile(t)

	var out bytes.Buffer
	langs, err := Languages(LanguagesConfig{ModelPath: path}, &out)
	require.NoError(t, err)
	assert.Equal(t, []Language{{Code: "en", Name: "English"}, {Code: "es", Name: "Spanish"}}, langs)
	assert.Regexp(t, `(?m)^en\s+English$`, out.String())
	assert.Regexp(t, `(?m)^es\s+Spanish$`, out.String())

	out.Reset()
	_, err = Languages(LanguagesConfig{ModelPath: path, Output: JSON}, &out)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":"en","name":"English"},{"code":"es","name":"Spanish"}]`, out.String())

	_, err = Languages(LanguagesConfig{ModelPath: filepath.Join(t.TempDir(), "none.json")}, &out)
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	path := modelFile(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reg := detect.NewRegistry(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ServeConfig{ModelPath: path, Registry: reg, Listener: ln})
	}()

	body := `{"text": "jajaja wey"}`
	url := fmt.Sprintf("http://%s/v1/detect", ln.Addr())
	var res detect.Result
	require.Eventually(t, func() bool {
		resp, err := http.Post(url, "application/json", strings.NewReader(body))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&res) == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "es", res.Language)

	// the server detects through the shared detector
	assert.Equal(t, path, reg.Path())
	shared, err := reg.Get("ignored")
	require.NoError(t, err)
	assert.True(t, shared.IsLoaded())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServeMissingModel(t *testing.T) {
	err := Serve(context.Background(), ServeConfig{ModelPath: filepath.Join(t.TempDir(), "none.json"), Addr: "127.0.0.1:0"})
	assert.ErrorContains(t, err, "failed to load model")
}
