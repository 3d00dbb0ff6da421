// Package corpus loads labelled training text from files, URLs or stdin.
//
// A source is decoded according to its format:
//   - JSON: an array of strings
//   - lines: one sample per line; tab-separated rows keep their text column
//     (id<TAB>lang<TAB>text and num<TAB>text layouts are both recognised)
//   - HTML: the readable paragraphs of the page without boilerplate, split into
//     sample-sized pieces
//
// Gzip-compressed sources are decompressed first. Every sample is trimmed and kept
// only when its length, measured by the configured counter, is inside the window.
package corpus

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/chunk"
	"github.com/chriscorrea/langsift/internal/classify"
	"github.com/chriscorrea/langsift/internal/counter"
	"github.com/chriscorrea/langsift/internal/extract"
	"github.com/chriscorrea/langsift/internal/fetch"
)

const (
	DefaultMinLength = 5
	DefaultMaxLength = 500
)

// ErrNoSource is returned by LoadLanguage when no file exists for a language.
var ErrNoSource = errors.New("no corpus file found")

// Format identifies how a source is decoded.
type Format int

const (
	// FormatAuto picks the format from the name, content type or content
	FormatAuto Format = iota
	FormatJSON
	FormatLines
	FormatHTML
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatJSON:
		return "json"
	case FormatLines:
		return "lines"
	case FormatHTML:
		return "html"
	default:
		return "unknown"
	}
}

// Options controls decoding and filtering.
type Options struct {
	// MinLength and MaxLength bound sample length in Counter units; MaxLength 0 means unbounded.
	MinLength int
	MaxLength int
	// Counter measures length; nil measures characters
	Counter counter.Counter
	// Format forces a decoder instead of detecting one
	Format Format
	// Selector restricts HTML extraction to matching elements
	Selector string
	// Language picks the boilerplate vocabulary for HTML sources read by Load
	Language string
	// KeepBoilerplate disables dropping page chrome from HTML sources
	KeepBoilerplate bool
	// MaxSamples stops reading a source after this many kept samples; 0 means all
	MaxSamples int
}

// Loader reads samples through a fetch.Fetcher.
type Loader struct {
	fetcher  *fetch.Fetcher
	opts     Options
	splitter *chunk.Splitter
}

// NewLoader creates a Loader. A nil fetcher uses fetch defaults.
func NewLoader(f *fetch.Fetcher, opts Options) *Loader {
	if f == nil {
		f = fetch.New()
	}
	if opts.Counter == nil {
		opts.Counter = counter.NewCharCounter()
	}

	splitMax := opts.MaxLength
	if splitMax <= 0 {
		splitMax = DefaultMaxLength
	}

	return &Loader{
		fetcher:  f,
		opts:     opts,
		splitter: chunk.NewSplitter(splitMax, opts.Counter),
	}
}

// Load reads one source ("-", a path or an http(s) URL) and returns its kept samples.
func (l *Loader) Load(ctx context.Context, source string) ([]string, error) {
	return l.load(ctx, source, l.opts.Language)
}

func (l *Loader) load(ctx context.Context, source, lang string) ([]string, error) {
	data, src, err := l.fetcher.ReadAll(ctx, source)
	if err != nil {
		return nil, err
	}

	name := src.Name
	if isGzip(name, data) {
		data, err = gunzip(data, l.fetcher.MaxBytes(src.Kind))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", src.Name, err)
		}
		name = strings.TrimSuffix(name, ".gz")
	}

	format := l.opts.Format
	if format == FormatAuto {
		format = detectFormat(name, src.ContentType, data)
	}

	log.Debug().
		Str("source", src.Name).
		Str("kind", src.Kind.String()).
		Str("format", format.String()).
		Int("bytes", len(data)).
		Msg("Decoding corpus source")

	var raw []string
	switch format {
	case FormatJSON:
		raw, err = decodeJSON(data)
	case FormatHTML:
		raw, err = l.decodeHTML(data, lang)
	default:
		raw, err = decodeLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as %s: %w", src.Name, format, err)
	}

	samples := l.Filter(raw)
	log.Debug().
		Str("source", src.Name).
		Int("raw", len(raw)).
		Int("kept", len(samples)).
		Msg("Corpus source loaded")
	return samples, nil
}

// Filter trims samples and keeps those inside the length window, up to MaxSamples.
func (l *Loader) Filter(raw []string) []string {
	minLength := l.opts.MinLength
	if minLength <= 0 {
		minLength = 1
	}

	kept := make([]string, 0, len(raw))
	for _, s := range raw {
		if l.opts.MaxSamples > 0 && len(kept) >= l.opts.MaxSamples {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" || !counter.InRange(l.opts.Counter, s, minLength, l.opts.MaxLength) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// candidates lists the file names tried for a language, in order.
func candidates(lang string) []string {
	return []string{
		lang + ".json",
		lang + ".txt",
		lang + ".tsv",
		lang + ".txt.gz",
		lang + ".gz",
		lang + ".html",
		lang,
	}
}

// LoadLanguage reads the first corpus file for lang found in dir.
func (l *Loader) LoadLanguage(ctx context.Context, dir, lang string) ([]string, error) {
	for _, name := range candidates(lang) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		return l.load(ctx, path, lang)
	}
	return nil, fmt.Errorf("%w for %q in %s", ErrNoSource, lang, dir)
}

// LoadDir reads every language's corpus from dir. Languages without a file are
// logged and get no samples; any other failure aborts.
func (l *Loader) LoadDir(ctx context.Context, dir string, langs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(langs))
	for _, lang := range langs {
		samples, err := l.LoadLanguage(ctx, dir, lang)
		if errors.Is(err, ErrNoSource) {
			log.Warn().Str("language", lang).Str("dir", dir).Msg("No corpus file for language")
			out[lang] = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", lang, err)
		}
		out[lang] = samples
	}
	return out, nil
}

func isGzip(name string, data []byte) bool {
	return strings.HasSuffix(name, ".gz") || mimetype.Detect(data).Is("application/gzip")
}

// gunzip decompresses data, failing once the output grows past limit bytes.
func gunzip(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("decompressed content exceeds %d bytes limit", limit)
	}
	return out, nil
}

// detectFormat checks the extension, then the declared content type, then sniffs.
func detectFormat(name, contentType string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".html", ".htm":
		return FormatHTML
	case ".txt", ".tsv", ".csv":
		return FormatLines
	}

	switch contentType {
	case "application/json":
		return FormatJSON
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	case "text/plain":
		return FormatLines
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/json"):
		return FormatJSON
	case mt.Is("text/html"):
		return FormatHTML
	default:
		return FormatLines
	}
}

func decodeJSON(data []byte) ([]string, error) {
	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

func decodeLines(data []byte) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		text := lineText(scanner.Text())
		// markup and metadata rows
		if text == "" || strings.HasPrefix(text, "<") {
			continue
		}
		out = append(out, text)
	}
	return out, scanner.Err()
}

// lineText picks the text column of a tab-separated row.
func lineText(line string) string {
	parts := strings.Split(line, "\t")
	switch {
	case len(parts) >= 3:
		return strings.TrimSpace(parts[2])
	case len(parts) == 2 && isDigits(strings.TrimSpace(parts[0])):
		return strings.TrimSpace(parts[1])
	default:
		return strings.TrimSpace(line)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (l *Loader) decodeHTML(data []byte, lang string) ([]string, error) {
	paragraphs, err := extract.Paragraphs(bytes.NewReader(data), extract.Options{Selector: l.opts.Selector})
	if errors.Is(err, extract.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !l.opts.KeepBoilerplate {
		paragraphs = classify.ForLanguage(lang).Filter(paragraphs)
	}

	var out []string
	for _, p := range paragraphs {
		out = append(out, l.splitter.Split(p)...)
	}
	return out, nil
}
