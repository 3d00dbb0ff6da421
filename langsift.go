// Package langsift detects the language of short, informal text such as chat
// messages, SMS and social posts.
//
// A Detector combines a Gaussian Naive Bayes classifier over character n-gram
// TF-IDF features with a slang lexicon matcher. Models are trained with the
// langsift CLI (langsift train) and loaded from a JSON file:
//
//	d, err := langsift.GetDetector("models/language-model.json")
//	if err != nil {
//		return err
//	}
//	res, err := d.Detect("jajaja que onda wey")
//
// GetDetector shares one Detector per process; ResetDetector drops it so the next
// call loads again.
package langsift

import (
	"github.com/chriscorrea/langsift/internal/detect"
)

type (
	// Detector detects the language of informal text. It is safe for concurrent use.
	Detector = detect.Detector
	// Result is the outcome of detecting one text.
	Result = detect.Result
	// Source names the decision branch behind a Result.
	Source = detect.Source
	// Option configures a Detector.
	Option = detect.Option
)

const (
	SourceSlang         = detect.SourceSlang
	SourceSlangOverride = detect.SourceSlangOverride
	SourceCombined      = detect.SourceCombined
	SourceML            = detect.SourceML
)

// ErrModelNotLoaded is returned by detection before a model has been loaded.
var ErrModelNotLoaded = detect.ErrModelNotLoaded

var (
	// New creates a Detector without a model.
	New = detect.New
	// WithFallbackLanguage sets the language reported for empty input.
	WithFallbackLanguage = detect.WithFallbackLanguage
	// LanguageName returns the English name of a language code.
	LanguageName = detect.LanguageName
)

var shared = detect.NewRegistry(nil)

// GetDetector returns the process-wide Detector, loading it from path on first use.
// Later calls return the same Detector and ignore path until ResetDetector.
func GetDetector(path string) (*Detector, error) {
	return shared.Get(path)
}

// ResetDetector drops the process-wide Detector.
func ResetDetector() {
	shared.Reset()
}

// Detect runs the process-wide Detector. It returns ErrModelNotLoaded before GetDetector.
func Detect(text string) (Result, error) {
	return shared.Detect(text)
}
