// Package normalize prepares informal text for language detection.
//
// Text strips content that carries no language signal (URLs, e-mail addresses, phone
// numbers, emoji), case-folds and collapses whitespace. It runs on both the training
// and the inference path so the vectorizer always sees the same shape of input.
//
// Augment is training-only: it expands a sample into the abbreviated variants people
// actually type ("porque" -> "xq", "you" -> "u") so short slang still lands near its
// language in feature space.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	urlRegex   = regexp.MustCompile(`https?://\S+`)
	emailRegex = regexp.MustCompile(`\S+@\S+\.\S+`)
	phoneRegex = regexp.MustCompile(`\+?[\d\s-]{10,}`)
	emojiRegex = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{2600}-\x{26FF}\x{1F900}-\x{1F9FF}]`)

	punctuationRegex = regexp.MustCompile(`[^\w\s]`)
)

// Text returns the normalized form of s. Empty input yields an empty string.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = cases.Lower(language.Und).String(s)
	s = urlRegex.ReplaceAllString(s, "")
	s = emailRegex.ReplaceAllString(s, "")
	s = phoneRegex.ReplaceAllString(s, "")
	s = emojiRegex.ReplaceAllString(s, "")

	// strings.Fields splits on any unicode whitespace and drops the ends
	return strings.Join(strings.Fields(s), " ")
}

// substitution rewrites one whole-word phrase into its texting shorthand.
type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

func sub(phrase, replacement string) substitution {
	return substitution{
		pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
		replacement: replacement,
	}
}

// abbreviations are applied in order, each on the output of the previous one
var abbreviations = map[string][]substitution{
	"es": {
		sub("que", "q"),
		sub("por", "x"),
		sub("porque", "xq"),
		sub("para", "pa"),
		sub("también", "tmb"),
	},
	"en": {
		sub("you", "u"),
		sub("are", "r"),
		sub("for", "4"),
		sub("before", "b4"),
		sub("tomorrow", "tmrw"),
	},
	"fr": {
		sub("salut", "slt"),
		sub("bonjour", "bjr"),
		sub("bonsoir", "bsr"),
		sub("je ne sais pas", "jsp"),
		sub("je t'aime", "jtm"),
		sub("t'inquiète", "tkt"),
		sub("maintenant", "mtn"),
		sub("toujours", "tjrs"),
		sub("s'il te plaît", "stp"),
		sub("s'il vous plaît", "svp"),
		sub("pourquoi", "pk"),
		sub("beaucoup", "bcp"),
	},
	"it": {
		sub("comunque", "cmq"),
		sub("perché", "xké"),
		sub("perche", "xche"),
		sub("non", "nn"),
		sub("che", "ke"),
		sub("quando", "qnd"),
		sub("quanto", "qnt"),
		sub("qualcosa", "qlc"),
		sub("qualcuno", "qlcn"),
		sub("tutto", "tt"),
		sub("ti voglio bene", "tvb"),
		sub("grazie", "grz"),
	},
	"pt": {
		sub("voce", "vc"),
		sub("você", "vc"),
		sub("tambem", "tb"),
		sub("também", "tb"),
		sub("porque", "pq"),
		sub("quando", "qnd"),
		sub("quanto", "qnt"),
		sub("muito", "mt"),
		sub("nada", "nd"),
		sub("tudo", "td"),
		sub("agora", "agr"),
		sub("hoje", "hj"),
		sub("depois", "dps"),
		sub("beleza", "blz"),
		sub("valeu", "vlw"),
		sub("obrigado", "obg"),
		sub("obrigada", "obg"),
	},
	"de": {
		sub("liebe grüße", "lg"),
		sub("liebe gruesse", "lg"),
		sub("hab dich lieb", "hdl"),
		sub("hab dich ganz doll lieb", "hdgdl"),
		sub("gute nacht", "gn8"),
		sub("vielleicht", "vllt"),
		sub("eventuell", "evtl"),
		sub("eigentlich", "eigtl"),
		sub("irgendwie", "iwie"),
		sub("irgendwann", "iwann"),
		sub("irgendwo", "iwo"),
		sub("irgendwas", "iwas"),
		sub("keine ahnung", "ka"),
		sub("kein plan", "kp"),
		sub("kein bock", "kb"),
		sub("danke", "thx"),
		sub("übrigens", "btw"),
		sub("auf jeden fall", "auf jeden"),
	},
}

// Augment returns text followed by its training variations: the normalized form,
// a punctuation-free form and, for languages with known shorthand, an abbreviated
// form. A variation is only added when it differs from the original.
func Augment(text, lang string) []string {
	variations := []string{text}

	if normalized := Text(text); normalized != text && normalized != "" {
		variations = append(variations, normalized)
	}

	if stripped := punctuationRegex.ReplaceAllString(text, ""); stripped != text && stripped != "" {
		variations = append(variations, stripped)
	}

	subs, ok := abbreviations[lang]
	if !ok {
		return variations
	}

	abbreviated := text
	for _, s := range subs {
		abbreviated = s.pattern.ReplaceAllString(abbreviated, s.replacement)
	}
	if abbreviated != text {
		variations = append(variations, abbreviated)
	}

	return variations
}
