// Package slang provides a lexical matcher for informal, abbreviated text.
//
// Very short chat messages ("jaja", "lol", "mdr") carry too few character n-grams for a
// statistical model to be trusted. The matcher looks the text up in per-language
// dictionaries of slang, greetings and texting shorthand and scores each language by
// how many hits it finds.
//
// Usage Example:
//
//	m, ok := slang.Default().Match("jajaja wey")
//	if ok {
//		fmt.Println(m.Language, m.Confidence) // es 1
//	}
//
// Lexicon order matters: when two languages score the same, the one listed first wins.
package slang

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chriscorrea/langsift/internal/normalize"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Scoring weights.
const (
	TokenWeight      = 1 // per whitespace token found in a dictionary
	WholeTextWeight  = 2 // the whole lower-cased text is a dictionary entry
	NormalizedWeight = 2 // the whole normalized text is a dictionary entry
)

// Lexicon is the set of lower-case terms and phrases for one language.
type Lexicon struct {
	Language string
	terms    map[string]struct{}
}

// NewLexicon builds a lexicon from terms, lower-casing each one.
func NewLexicon(lang string, terms ...string) Lexicon {
	caser := cases.Lower(language.Und)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set[caser.String(t)] = struct{}{}
	}
	return Lexicon{Language: lang, terms: set}
}

// LoadLexicon reads one term per line. Blank lines and lines starting with '#' are skipped.
func LoadLexicon(lang string, r io.Reader) (Lexicon, error) {
	var terms []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return Lexicon{}, fmt.Errorf("failed to read %s lexicon: %w", lang, err)
	}
	return NewLexicon(lang, terms...), nil
}

// Contains reports whether term (already lower-cased) is in the lexicon.
func (l Lexicon) Contains(term string) bool {
	_, ok := l.terms[term]
	return ok
}

// Size returns the number of distinct terms.
func (l Lexicon) Size() int { return len(l.terms) }

// Match is the outcome of a lexical lookup.
type Match struct {
	Language   string         `json:"language"`
	Confidence float64        `json:"confidence"`
	Scores     map[string]int `json:"scores"`
}

// Score returns the score of the winning language.
func (m Match) Score() int { return m.Scores[m.Language] }

// Matcher scores text against an ordered set of lexicons.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	lexicons []Lexicon
}

// NewMatcher creates a matcher. The order of lexicons decides ties.
func NewMatcher(lexicons ...Lexicon) *Matcher {
	return &Matcher{lexicons: lexicons}
}

var (
	defaultOnce    sync.Once
	defaultMatcher *Matcher
)

// Default returns the matcher over the embedded dictionaries (es, en, fr, it, pt).
// The dictionaries are parsed on first use only.
func Default() *Matcher {
	defaultOnce.Do(func() {
		lexicons := make([]Lexicon, 0, len(bundled))
		for _, b := range bundled {
			lex, err := LoadLexicon(b.language, strings.NewReader(b.terms))
			if err != nil {
				// embedded data cannot fail to read
				panic(err)
			}
			lexicons = append(lexicons, lex)
		}
		defaultMatcher = NewMatcher(lexicons...)

		log.Debug().Int("lexicons", len(lexicons)).Msg("slang dictionaries loaded")
	})
	return defaultMatcher
}

// Languages returns the lexicon languages in priority order.
func (m *Matcher) Languages() []string {
	langs := make([]string, len(m.lexicons))
	for i, lex := range m.lexicons {
		langs[i] = lex.Language
	}
	return langs
}

// Match scores text for every language. It returns false when no language scores
// at all. Confidence is the winner's share of the total score.
func (m *Matcher) Match(text string) (Match, bool) {
	lowered := cases.Lower(language.Und).String(text)
	tokens := strings.Fields(lowered)
	normalized := normalize.Text(text)

	scores := make(map[string]int, len(m.lexicons))
	total := 0
	best := -1
	for i, lex := range m.lexicons {
		score := 0
		for _, tok := range tokens {
			if lex.Contains(tok) {
				score += TokenWeight
			}
		}
		if lex.Contains(lowered) {
			score += WholeTextWeight
		}
		if lex.Contains(normalized) {
			score += NormalizedWeight
		}

		scores[lex.Language] = score
		total += score
		// strict comparison keeps the earliest lexicon on ties
		if score > 0 && (best < 0 || score > scores[m.lexicons[best].Language]) {
			best = i
		}
	}

	if total == 0 {
		return Match{}, false
	}

	winner := m.lexicons[best].Language
	return Match{
		Language:   winner,
		Confidence: float64(scores[winner]) / float64(total),
		Scores:     scores,
	}, true
}
