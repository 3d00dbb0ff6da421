package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/chriscorrea/langsift/internal/detect"
)

// LanguagesConfig holds the options of the languages command.
type LanguagesConfig struct {
	ModelPath string
	Output    OutputFormat
	Detector  *detect.Detector
}

// Language is a supported language code with its English name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages writes the languages the model can detect.
func Languages(cfg LanguagesConfig, w io.Writer) ([]Language, error) {
	d := cfg.Detector
	if d == nil {
		var err error
		if d, err = loadDetector(cfg.ModelPath, ""); err != nil {
			return nil, err
		}
	}

	codes := d.SupportedLanguages()
	langs := make([]Language, len(codes))
	for i, code := range codes {
		langs[i] = Language{Code: code, Name: detect.LanguageName(code)}
	}

	if cfg.Output == JSON {
		return langs, writeJSON(w, langs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, l := range langs {
		fmt.Fprintf(tw, "%s\t%s\n", l.Code, l.Name)
	}
	return langs, tw.Flush()
}
