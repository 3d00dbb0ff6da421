// Package classify filters boilerplate out of web pages used as training corpus.
//
// Pages scraped for sample text carry headers, footers, navigation, cookie banners and
// publishing metadata. Those paragraphs are written in a house register that would
// pollute a language's n-gram statistics, so they are dropped before segmentation.
// A paragraph is boilerplate when the share of its words that stem to a known
// boilerplate stem exceeds a threshold that is lower at the edges of the page.
package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// englishStems are stemmed words that commonly appear in extraneous content
// such as headers, footers, navigation, and publishing metadata
var englishStems = []string{
	// --- Publishing & Document Structure ---
	"author", "appendix", "book", "chapter",
	"content", // from "table of contents"
	"edit",    // from "edition"
	"ebook", "footer", "glossari",
	"gutenberg", // from "Project Gutenberg"
	"navig", "note", "page", "project", "publish",
	"text", // from "full text", "plain text"

	// --- Navigation & Interaction ---
	"about",
	"locat", // from "location"
	"profil", "share", "updat", "login", "subscrib", "cooki", "menu",

	// --- Legal & Footer Text ---
	"copyright", "manag", "permiss", "polici", "privaci", "public", "purpos",
	"reproduc", "reserv", "right", "risk", "standard", "term", "use",

	// --- Academic & Technical References ---
	"citat", "depart", "edu", "feder", "foundat",
	"https", // from URLs
	"isbn", "refer",
}

// boilerplateWords are unstemmed boilerplate vocabularies for languages with a
// snowball stemmer; they are stemmed when a Classifier is built.
var boilerplateWords = map[string][]string{
	"es": {
		"autor", "capítulo", "contenido", "edición", "página", "publicado", "inicio",
		"perfil", "compartir", "actualizado", "derechos", "reservados", "política",
		"privacidad", "términos", "condiciones", "uso", "aviso", "legal", "cookies",
		"suscríbete", "menú", "contacto", "buscar", "referencias", "comentarios",
		"etiquetas", "categorías", "https", "isbn",
	},
	"fr": {
		"auteur", "chapitre", "contenu", "édition", "page", "publié", "accueil", "profil",
		"partager", "droits", "réservés", "politique", "confidentialité", "conditions",
		"utilisation", "mentions", "légales", "cookies", "abonnez", "menu", "contact",
		"rechercher", "références", "commentaires", "catégories", "https", "isbn",
	},
}

// stemmers maps ISO 639-1 codes to snowball stemmer names.
var stemmers = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
}

// Classifier identifies extraneous paragraphs using boilerplate-stem density
// and position-based thresholding
type Classifier struct {
	// tokenRegex extracts word tokens from text
	tokenRegex *regexp.Regexp
	stemmer    string
	stems      map[string]struct{}
}

// NewClassifier creates a Classifier for English pages.
func NewClassifier() *Classifier {
	return ForLanguage("en")
}

// ForLanguage creates a Classifier for pages written in lang. Languages without a
// stemmer or vocabulary fall back to English, the usual language of web chrome.
func ForLanguage(lang string) *Classifier {
	c := &Classifier{
		tokenRegex: regexp.MustCompile(`\p{L}+`),
		stemmer:    "english",
		stems:      make(map[string]struct{}),
	}

	words, ok := boilerplateWords[lang]
	if !ok {
		for _, s := range englishStems {
			c.stems[s] = struct{}{}
		}
		return c
	}

	c.stemmer = stemmers[lang]
	for _, w := range words {
		c.stems[c.stem(w)] = struct{}{}
	}
	return c
}

func (c *Classifier) stem(token string) string {
	stemmed, err := snowball.Stem(token, c.stemmer, true)
	if err != nil {
		// if stemming fails, use the original token
		return token
	}
	return stemmed
}

// IsExtraneous determines if a paragraph should be classified as extraneous content.
// It analyzes the ratio of boilerplate stems to total tokens and applies a position-adjusted
// threshold that is lower for paragraphs at the beginning and end of the page.
//
// Returns true if the chunk is classified as extraneous and should be filtered out.
func (c *Classifier) IsExtraneous(chunkText string, chunkIndex int, totalChunks int) bool {
	// edge cases; invalid params should not be classified as extraneous
	if totalChunks <= 0 || chunkIndex < 0 || chunkIndex >= totalChunks {
		return false
	}

	tokens := c.tokenRegex.FindAllString(strings.ToLower(chunkText), -1)
	if len(tokens) == 0 {
		// empty chunks are considered extraneous
		return true
	}

	stopwordCount := 0
	for _, token := range tokens {
		if _, isStopword := c.stems[c.stem(token)]; isStopword {
			stopwordCount++
		}
	}

	stopwordRatio := float64(stopwordCount) / float64(len(tokens))
	return stopwordRatio > c.calculateThreshold(chunkIndex, totalChunks)
}

// Filter returns the paragraphs that are not extraneous, in order.
func (c *Classifier) Filter(paragraphs []string) []string {
	kept := make([]string, 0, len(paragraphs))
	for i, p := range paragraphs {
		if !c.IsExtraneous(p, i, len(paragraphs)) {
			kept = append(kept, p)
		}
	}
	return kept
}

// calculateThreshold computes a dynamic threshold based on chunk position.
// The threshold is lower for chunks at the beginning and end of documents
// (where headers, footers, and navigation are most commonly placed) and higher
// for chunks in the middle (where higher-density content is more likely).
func (c *Classifier) calculateThreshold(chunkIndex int, totalChunks int) float64 {
	if totalChunks <= 0 || chunkIndex < 0 || chunkIndex >= totalChunks {
		return 0.33
	}
	if totalChunks <= 3 {
		// small pages get a high threshold to avoid false positives
		return 0.5
	}

	relativePosition := float64(chunkIndex) / float64(totalChunks-1)

	// inverted V: 0 at the edges, 1 in the middle
	positionFactor := 1.0 - math.Abs(2.0*relativePosition-1.0)

	const (
		minThreshold = 0.1
		maxThreshold = 0.33
	)
	return minThreshold + (maxThreshold-minThreshold)*positionFactor
}
