// Package chunk splits long documents into message-sized training samples.
//
// Splitting works in waves, from the largest semantic unit to the smallest:
//  1. Paragraph boundaries (blank lines)
//  2. Sentence boundaries, found with prose's sentence segmenter
//  3. Line boundaries (single newlines)
//  4. Word boundaries, packing words up to the limit as a last resort
//
// Each wave only touches pieces that are still over the limit, so a short paragraph
// survives as one sample while a long one is broken into sentences. Size is measured
// with a counter.Counter, so the limit may be characters, words or tokens.
//
// Usage Example:
//
//	s := chunk.NewSplitter(200, counter.NewCharCounter())
//	samples := s.Split(document)
package chunk

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/counter"
)

// splitStrategy breaks one oversized piece into smaller segments.
type splitStrategy struct {
	name  string
	split func(text string) []string
}

// Splitter cuts text into pieces no larger than a maximum measured size.
type Splitter struct {
	max        int
	measure    counter.Counter
	strategies []splitStrategy
}

// NewSplitter creates a Splitter for pieces of at most max units of c.
// A nil counter measures characters.
func NewSplitter(max int, c counter.Counter) *Splitter {
	if c == nil {
		c = counter.NewCharCounter()
	}
	return &Splitter{
		max:     max,
		measure: c,
		strategies: []splitStrategy{
			{name: "paragraph", split: delimited("\n\n")},
			{name: "sentence", split: sentences},
			{name: "line", split: delimited("\n")},
			{name: "word", split: strings.Fields},
		},
	}
}

// Max returns the size limit in the splitter's unit.
func (s *Splitter) Max() int { return s.max }

// Unit returns the name of the measuring counter.
func (s *Splitter) Unit() string { return s.measure.Name() }

// Split breaks text into pieces that each measure at most Max.
// A single word longer than the limit is kept whole.
func (s *Splitter) Split(text string) []string {
	log.Debug().Int("textLength", len(text)).Int("max", s.max).Msg("Split called")

	if s.max <= 0 || strings.TrimSpace(text) == "" {
		return []string{}
	}

	text = trimSpacesOnly(text)
	if s.fits(text) {
		return []string{strings.TrimSpace(text)}
	}

	var final []string
	queue := []string{text}

	for _, strategy := range s.strategies {
		if len(queue) == 0 {
			break
		}

		var next []string
		for _, piece := range queue {
			if s.fits(piece) {
				final = append(final, piece)
				continue
			}

			log.Debug().
				Str("strategy", strategy.name).
				Int("pieceLength", len(piece)).
				Msg("Splitting oversized piece")

			segments := cleanSegments(strategy.split(piece))
			if strategy.name == "word" {
				segments = s.packWords(segments)
			} else {
				segments = s.mergeShortSegments(segments)
			}
			next = append(next, segments...)
		}
		queue = next
	}

	for _, piece := range queue {
		if trimmed := trimSpacesOnly(piece); trimmed != "" {
			final = append(final, trimmed)
		}
	}

	out := make([]string, 0, len(final))
	for _, piece := range final {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	log.Debug().Int("pieces", len(out)).Msg("Split completed")
	return out
}

func (s *Splitter) fits(text string) bool {
	return s.measure.Count(text) <= s.max
}

// delimited returns a strategy that splits on a literal delimiter.
func delimited(delimiter string) func(string) []string {
	return func(text string) []string {
		return strings.Split(text, delimiter)
	}
}

// sentences segments text with prose. Tagging, tokenization and entity
// extraction are switched off; only the segmenter runs.
func sentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		log.Debug().Err(err).Msg("Sentence segmentation failed")
		return []string{text}
	}

	var out []string
	for _, sent := range doc.Sentences() {
		out = append(out, sent.Text)
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func cleanSegments(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := trimSpacesOnly(part); strings.TrimSpace(trimmed) != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// packWords joins consecutive words into pieces up to the limit.
func (s *Splitter) packWords(words []string) []string {
	var result []string
	var current strings.Builder

	for _, word := range words {
		if current.Len() > 0 && !s.fits(current.String()+" "+word) {
			result = append(result, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// minimumSize is a quarter of the limit, at least one unit.
func (s *Splitter) minimumSize() int {
	minSize := s.max / 4
	if minSize < 1 {
		minSize = 1
	}
	return minSize
}

// mergeShortSegments folds segments below the minimum size into a neighbour
// (next first, then previous) when the result still fits.
func (s *Splitter) mergeShortSegments(segments []string) []string {
	if len(segments) <= 1 {
		return segments
	}

	minSize := s.minimumSize()
	var result []string

	for i := 0; i < len(segments); i++ {
		current := segments[i]

		if s.measure.Count(current) >= minSize {
			result = append(result, current)
			continue
		}

		if i+1 < len(segments) {
			combined := current + " " + segments[i+1]
			if s.fits(combined) {
				segments[i+1] = combined
				continue
			}
		}

		if len(result) > 0 {
			combined := result[len(result)-1] + " " + current
			if s.fits(combined) {
				result[len(result)-1] = combined
				continue
			}
		}

		result = append(result, current)
	}

	return result
}

// trimSpacesOnly removes leading and trailing spaces and tabs but keeps line breaks,
// which later waves still split on.
func trimSpacesOnly(s string) string {
	return strings.Trim(s, " \t")
}
