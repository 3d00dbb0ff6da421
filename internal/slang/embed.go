package slang

import _ "embed"

//go:embed data/es.txt
var esTerms string

//go:embed data/en.txt
var enTerms string

//go:embed data/fr.txt
var frTerms string

//go:embed data/it.txt
var itTerms string

//go:embed data/pt.txt
var ptTerms string

// bundled lists the embedded dictionaries in match priority order.
var bundled = []struct {
	language string
	terms    string
}{
	{"es", esTerms},
	{"en", enTerms},
	{"fr", frTerms},
	{"it", itTerms},
	{"pt", ptTerms},
}
