package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/fetch"
)

// DetectConfig holds the options of the detect command.
type DetectConfig struct {
	ModelPath        string
	FallbackLanguage string
	Texts            []string // detected as given
	Sources          []string // "-", file paths or URLs; one text per line
	Output           OutputFormat
	Probabilities    bool // include per-language probabilities
	Quiet            bool // suppress warnings about unreadable sources

	// Detector replaces loading ModelPath
	Detector *detect.Detector
	// Fetcher reads Sources; fetch defaults when nil
	Fetcher *fetch.Fetcher
	// Stderr receives warnings; os.Stderr when nil
	Stderr io.Writer
}

// Detection pairs an input text with its result.
type Detection struct {
	Text string `json:"text"`
	detect.Result
}

// Detect runs detection over the configured texts and writes the results to w.
func Detect(ctx context.Context, cfg DetectConfig, w io.Writer) error {
	texts := append([]string(nil), cfg.Texts...)
	if len(cfg.Sources) > 0 {
		lines, err := readSourceLines(ctx, cfg)
		if err != nil {
			return err
		}
		texts = append(texts, lines...)
	}
	if len(texts) == 0 {
		return errors.New("no text to detect")
	}

	d := cfg.Detector
	if d == nil {
		var err error
		if d, err = loadDetector(cfg.ModelPath, cfg.FallbackLanguage); err != nil {
			return err
		}
	}

	results, err := d.DetectBatch(texts)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	detections := make([]Detection, len(texts))
	for i, text := range texts {
		res := results[i]
		if !cfg.Probabilities {
			res.Probabilities = nil
		}
		detections[i] = Detection{Text: text, Result: res}
	}

	if cfg.Output == JSON {
		return writeJSON(w, detections)
	}
	return writeDetections(w, detections)
}

// readSourceLines collects one text per non-blank line across all sources.
// Unreadable sources are skipped with a warning.
func readSourceLines(ctx context.Context, cfg DetectConfig) ([]string, error) {
	f := cfg.Fetcher
	if f == nil {
		f = fetch.New()
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var (
		lines  []string
		failed int
	)
	for _, source := range cfg.Sources {
		data, _, err := f.ReadAll(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			if !cfg.Quiet {
				fmt.Fprintf(stderr, "Warning: failed to read source %q: %v\n", source, err)
			}
			continue
		}

		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}

	if failed == len(cfg.Sources) {
		return nil, errors.New("no source could be read")
	}
	return lines, nil
}

// writeDetections prints language, confidence, reliability, source and text per line.
func writeDetections(w io.Writer, detections []Detection) error {
	bw := bufio.NewWriter(w)
	for _, d := range detections {
		reliability := "unreliable"
		if d.IsReliable {
			reliability = "reliable"
		}
		source := string(d.Source)
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(bw, "%s\t%.3f\t%s\t%s\t%s", d.Language, d.Confidence, reliability, source, d.Text)
		if len(d.Probabilities) > 0 {
			fmt.Fprintf(bw, "\t%s", formatProbabilities(d.Probabilities))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// formatProbabilities renders "en=0.071 es=0.929" in code order.
func formatProbabilities(probs map[string]float64) string {
	codes := make([]string, 0, len(probs))
	for code := range probs {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = fmt.Sprintf("%s=%.3f", code, probs[code])
	}
	return strings.Join(parts, " ")
}
