package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/corpus"
	"github.com/chriscorrea/langsift/internal/fetch"
	"github.com/chriscorrea/langsift/internal/model"
	"github.com/chriscorrea/langsift/internal/train"
)

// TrainConfig holds the options of the train command.
type TrainConfig struct {
	DataDir  string
	Output   string // model path; a minified copy is written next to it
	Corpus   corpus.Options
	Training train.Options
	Quiet    bool

	// Fetcher reads corpus files; fetch defaults when nil
	Fetcher *fetch.Fetcher
	// Progress receives stage updates; os.Stderr when nil
	Progress io.Writer
}

// TrainResult describes a finished training run.
type TrainResult struct {
	Model        *model.Model
	ModelPath    string
	MinifiedPath string
	MinifiedSize int64
}

// Train loads the corpus, trains a model, saves it and writes a summary to w.
func Train(ctx context.Context, cfg TrainConfig, w io.Writer) (*TrainResult, error) {
	if cfg.Output == "" {
		return nil, errors.New("no output path given")
	}
	progressW := cfg.Progress
	if progressW == nil {
		progressW = os.Stderr
	}

	p := newProgress(ctx, progressW, cfg.Quiet, "Loading corpus")

	loader := corpus.NewLoader(cfg.Fetcher, cfg.Corpus)
	data, err := loader.LoadDir(ctx, cfg.DataDir, cfg.Training.Languages)
	if err != nil {
		p.fail()
		return nil, fmt.Errorf("failed to load corpus from %s: %w", cfg.DataDir, err)
	}
	for _, lang := range cfg.Training.Languages {
		log.Debug().Str("language", lang).Int("samples", len(data[lang])).Msg("Corpus loaded")
	}

	opts := cfg.Training
	opts.Progress = p.stage
	m, err := train.Train(ctx, data, opts)
	if err != nil {
		p.fail()
		return nil, fmt.Errorf("training failed: %w", err)
	}

	p.stage("Saving model")
	res := &TrainResult{
		Model:        m,
		ModelPath:    cfg.Output,
		MinifiedPath: minifiedPath(cfg.Output),
	}
	if err := model.Save(res.ModelPath, m); err != nil {
		p.fail()
		return nil, err
	}
	if err := model.SaveMinified(res.MinifiedPath, m); err != nil {
		p.fail()
		return nil, err
	}
	if info, err := os.Stat(res.MinifiedPath); err == nil {
		res.MinifiedSize = info.Size()
	}
	p.done()

	return res, writeTrainSummary(w, res)
}

// minifiedPath turns models/x.json into models/x.min.json.
func minifiedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".min" + ext
}

func writeTrainSummary(w io.Writer, res *TrainResult) error {
	m := res.Model
	fmt.Fprintf(w, "Training samples: %d\nTest samples: %d\n", m.TrainingSamples, m.TestSamples)

	if m.Metrics != nil {
		if err := writeMetrics(w, m.Languages(), *m.Metrics); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nModel saved to: %s\n", res.ModelPath)
	fmt.Fprintf(w, "Minified model saved to: %s (%.2f KB)\n", res.MinifiedPath, float64(res.MinifiedSize)/1024)
	return nil
}

// writeMetrics prints accuracy, per-class scores and the confusion matrix.
func writeMetrics(w io.Writer, languages []string, metrics model.Metrics) error {
	fmt.Fprintf(w, "\nAccuracy: %.2f%%\n", metrics.Accuracy*100)

	fmt.Fprintln(w, "\nPer-class metrics:")
	for _, lang := range languages {
		cm, ok := metrics.PerClassMetrics[lang]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %s: P=%.1f%% R=%.1f%% F1=%.1f%%\n", lang, cm.Precision*100, cm.Recall*100, cm.F1*100)
	}

	if len(metrics.ConfusionMatrix) == 0 {
		return nil
	}

	fmt.Fprintln(w, "\nConfusion matrix (rows actual, columns predicted):")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(languages, "\t"))
	for _, actual := range languages {
		row := metrics.ConfusionMatrix[actual]
		cells := make([]string, len(languages))
		for i, predicted := range languages {
			cells[i] = fmt.Sprint(row[predicted])
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", actual, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

