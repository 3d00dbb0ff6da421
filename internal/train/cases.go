package train

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/detect"
)

//go:embed cases.tsv
var bundledCases string

// Case is one labelled evaluation text.
type Case struct {
	Text     string `json:"text"`
	Expected string `json:"expected"`
}

// CaseResult records what a detector said about a Case.
type CaseResult struct {
	Case
	Predicted  string  `json:"predicted"`
	Confidence float64 `json:"confidence"`
	Correct    bool    `json:"correct"`
}

// Report summarizes a run over a set of cases.
type Report struct {
	Name     string       `json:"name"`
	Total    int          `json:"total"`
	Correct  int          `json:"correct"`
	Skipped  int          `json:"skipped"`
	Accuracy float64      `json:"accuracy"`
	Results  []CaseResult `json:"results"`
}

// Failures returns the incorrect results in case order.
func (r Report) Failures() []CaseResult {
	var out []CaseResult
	for _, res := range r.Results {
		if !res.Correct {
			out = append(out, res)
		}
	}
	return out
}

// LoadCases parses text<TAB>language lines. Blank lines and # comments are skipped.
func LoadCases(r io.Reader) ([]Case, error) {
	var cases []Case
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		idx := strings.LastIndex(raw, "\t")
		if idx < 0 {
			return nil, fmt.Errorf("line %d: want text<TAB>language", line)
		}
		text, lang := strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+1:])
		if text == "" || lang == "" {
			return nil, fmt.Errorf("line %d: empty text or language", line)
		}
		cases = append(cases, Case{Text: text, Expected: strings.ToLower(lang)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	return cases, nil
}

var (
	defaultCasesOnce sync.Once
	defaultCases     []Case
)

// DefaultCases returns the curated evaluation set: conversational, regional slang,
// chat abbreviations, numbers and formal register for es, en and fr.
func DefaultCases() []Case {
	defaultCasesOnce.Do(func() {
		cases, err := LoadCases(strings.NewReader(bundledCases))
		if err != nil {
			panic(fmt.Sprintf("train: bundled cases: %v", err))
		}
		defaultCases = cases
	})
	return append([]Case(nil), defaultCases...)
}

// Detector is the part of detect.Detector that RunCases needs.
type Detector interface {
	Detect(text string) (detect.Result, error)
	SupportedLanguages() []string
}

// RunCases detects every case whose expected language the detector supports;
// the others are counted as skipped.
func RunCases(d Detector, cases []Case) (Report, error) {
	supported := make(map[string]bool)
	for _, l := range d.SupportedLanguages() {
		supported[l] = true
	}

	report := Report{Name: "langsift"}
	for _, c := range cases {
		if !supported[c.Expected] {
			report.Skipped++
			continue
		}
		res, err := d.Detect(c.Text)
		if err != nil {
			return Report{}, fmt.Errorf("failed to detect %q: %w", c.Text, err)
		}
		report.add(c, res.Language, res.Confidence)
	}

	log.Debug().Int("total", report.Total).Int("correct", report.Correct).Int("skipped", report.Skipped).Msg("Cases evaluated")
	return report, nil
}

// Baseline runs the same cases through whatlanggo, restricted to languages so
// both detectors choose from one set.
func Baseline(cases []Case, languages []string) Report {
	whitelist := make(map[whatlanggo.Lang]bool)
	allowed := make(map[string]bool)
	for _, code := range languages {
		if lang, ok := whatlangCodes[code]; ok {
			whitelist[lang] = true
			allowed[code] = true
		}
	}
	opts := whatlanggo.Options{Whitelist: whitelist}

	report := Report{Name: "whatlanggo"}
	for _, c := range cases {
		if !allowed[c.Expected] {
			report.Skipped++
			continue
		}
		info := whatlanggo.DetectWithOptions(c.Text, opts)
		report.add(c, info.Lang.Iso6391(), info.Confidence)
	}
	return report
}

func (r *Report) add(c Case, predicted string, confidence float64) {
	res := CaseResult{
		Case:       c,
		Predicted:  predicted,
		Confidence: confidence,
		Correct:    predicted == c.Expected,
	}
	r.Results = append(r.Results, res)
	r.Total++
	if res.Correct {
		r.Correct++
	}
	r.Accuracy = ratio(r.Correct, r.Total)
}

// whatlangCodes maps the ISO 639-1 codes this module uses to whatlanggo languages.
var whatlangCodes = map[string]whatlanggo.Lang{
	"es": whatlanggo.Spa,
	"en": whatlanggo.Eng,
	"fr": whatlanggo.Fra,
	"it": whatlanggo.Ita,
	"pt": whatlanggo.Por,
	"de": whatlanggo.Deu,
}
