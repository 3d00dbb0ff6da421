// Package app contains the command logic behind the langsift CLI.
// It handles loading, training, evaluation and serving, separated from flag parsing.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/spinner"
)

// OutputFormat defines how command results are printed.
type OutputFormat int

const (
	// tab-separated text (default)
	Text OutputFormat = iota
	// indented JSON
	JSON
)

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	switch f {
	case Text:
		return "Text"
	case JSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// loadDetector builds a detector for one command run.
func loadDetector(path, fallback string) (*detect.Detector, error) {
	d := detect.New(detect.WithFallbackLanguage(fallback))
	if err := d.LoadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	log.Debug().Str("path", path).Str("modelId", d.ModelID()).Msg("Model loaded")
	return d, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progress reports the stages of a long job: animated on a terminal,
// one line per stage otherwise, nothing when quiet.
type progress struct {
	w  io.Writer
	sp *spinner.Spinner
}

func newProgress(ctx context.Context, w io.Writer, quiet bool, first string) *progress {
	if quiet || w == nil {
		return &progress{}
	}
	p := &progress{w: w}
	if spinner.Interactive(w) {
		p.sp = spinner.New(ctx, w, first)
		p.sp.Start()
		return p
	}
	fmt.Fprintf(w, "%s...\n", first)
	return p
}

func (p *progress) stage(msg string) {
	switch {
	case p.sp != nil:
		p.sp.Stage(msg)
	case p.w != nil:
		fmt.Fprintf(p.w, "%s...\n", msg)
	}
}

func (p *progress) done() {
	if p.sp != nil {
		p.sp.Done()
	}
}

// fail stops the animation without marking the current stage complete.
func (p *progress) fail() {
	if p.sp != nil {
		p.sp.Stop()
	}
}
