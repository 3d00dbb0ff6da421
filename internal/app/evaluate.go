package app

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/fetch"
	"github.com/chriscorrea/langsift/internal/train"
)

// EvaluateConfig holds the options of the evaluate command.
type EvaluateConfig struct {
	ModelPath        string
	FallbackLanguage string
	CasesPath        string // text<TAB>language cases; the bundled set when empty
	Baseline         bool   // also run whatlanggo over the same cases
	Interactive      bool   // read texts from Stdin after the run
	Output           OutputFormat
	Quiet            bool // only print the summary

	Detector *detect.Detector
	Fetcher  *fetch.Fetcher
	// Stdin feeds interactive mode; os.Stdin when nil
	Stdin io.Reader
}

// EvaluateResult holds the reports of an evaluation run.
type EvaluateResult struct {
	SupportedLanguages []string      `json:"supportedLanguages"`
	Report             train.Report  `json:"report"`
	Baseline           *train.Report `json:"baseline,omitempty"`
}

// Evaluate runs the evaluation cases through the model and writes a report to w.
func Evaluate(ctx context.Context, cfg EvaluateConfig, w io.Writer) (*EvaluateResult, error) {
	d := cfg.Detector
	if d == nil {
		var err error
		if d, err = loadDetector(cfg.ModelPath, cfg.FallbackLanguage); err != nil {
			return nil, err
		}
	}

	cases, err := loadCases(ctx, cfg)
	if err != nil {
		return nil, err
	}

	report, err := train.RunCases(d, cases)
	if err != nil {
		return nil, err
	}
	res := &EvaluateResult{SupportedLanguages: d.SupportedLanguages(), Report: report}
	if cfg.Baseline {
		baseline := train.Baseline(cases, res.SupportedLanguages)
		res.Baseline = &baseline
	}

	if cfg.Output == JSON {
		if err := writeJSON(w, res); err != nil {
			return nil, err
		}
	} else {
		writeEvaluation(w, res, cfg.Quiet)
	}

	if cfg.Interactive {
		in := cfg.Stdin
		if in == nil {
			in = os.Stdin
		}
		if err := Interactive(ctx, d, in, w); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func loadCases(ctx context.Context, cfg EvaluateConfig) ([]train.Case, error) {
	if cfg.CasesPath == "" {
		return train.DefaultCases(), nil
	}

	f := cfg.Fetcher
	if f == nil {
		f = fetch.New()
	}
	data, _, err := f.ReadAll(ctx, cfg.CasesPath)
	if err != nil {
		return nil, err
	}
	cases, err := train.LoadCases(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cases %s: %w", cfg.CasesPath, err)
	}
	return cases, nil
}

func writeEvaluation(w io.Writer, res *EvaluateResult, quiet bool) {
	fmt.Fprintf(w, "Supported languages: %s\n", strings.Join(res.SupportedLanguages, ", "))

	if !quiet {
		fmt.Fprintln(w)
		for _, r := range res.Report.Results {
			status := "✓"
			if !r.Correct {
				status = "✗"
			}
			fmt.Fprintf(w, "%s %q -> %s (%.1f%%) [expected: %s]\n", status, r.Text, r.Predicted, r.Confidence*100, r.Expected)
		}
	}

	fmt.Fprintln(w, "\n=== Results ===")
	writeReportSummary(w, res.Report)

	if failures := res.Report.Failures(); len(failures) > 0 && !quiet {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(w, "  %q: predicted %s (%.1f%%), expected %s\n", f.Text, f.Predicted, f.Confidence*100, f.Expected)
		}
	}

	if res.Baseline != nil {
		fmt.Fprintln(w, "\n=== Baseline ===")
		writeReportSummary(w, *res.Baseline)
	}
}

func writeReportSummary(w io.Writer, r train.Report) {
	fmt.Fprintf(w, "%s accuracy: %.2f%% (%d/%d)", r.Name, r.Accuracy*100, r.Correct, r.Total)
	if r.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", r.Skipped)
	}
	fmt.Fprintln(w)
}

// Interactive detects each line read from in until EOF or cancellation.
func Interactive(ctx context.Context, d *detect.Detector, in io.Reader, w io.Writer) error {
	fmt.Fprintln(w, "\n=== Interactive Mode ===")
	fmt.Fprintln(w, "Enter text to detect language (Ctrl+D to exit)")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		res, err := d.Detect(text)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  Language: %s (%.1f%%)\n", res.Language, res.Confidence*100)
		fmt.Fprintf(w, "  Reliable: %t\n", res.IsReliable)
		if res.Source != "" {
			fmt.Fprintf(w, "  Source: %s\n", res.Source)
		}
		if len(res.Probabilities) > 0 {
			fmt.Fprintf(w, "  Probabilities: %s\n", formatProbabilities(res.Probabilities))
		}
	}
}
