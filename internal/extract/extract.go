// Package extract reduces HTML corpus pages to plain paragraphs of text.
//
// Training samples feed character n-grams directly, so any markup left in the text
// would become features. Extraction returns one paragraph per block element and
// collapses whitespace inside each paragraph.
package extract

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// blockSelector lists the elements whose text becomes a paragraph.
const blockSelector = "p, li, h1, h2, h3, h4, h5, h6, blockquote, pre, td, th, dd, dt, figcaption"

// ErrNoContent is returned when a page yields no text at all.
var ErrNoContent = errors.New("no text content found")

// Options controls which part of the page is kept.
type Options struct {
	// Selector keeps only elements matching this CSS selector. It overrides IncludeAll.
	Selector string
	// IncludeAll keeps the whole body instead of the readability main content.
	IncludeAll bool
	// BaseURL gives readability context for resolving links. May be nil.
	BaseURL *url.URL
}

// Paragraphs extracts text paragraphs from HTML.
func Paragraphs(content io.Reader, opts Options) ([]string, error) {
	switch {
	case opts.Selector != "":
		return withSelector(content, opts.Selector)
	case opts.IncludeAll:
		return allText(content)
	default:
		return mainContent(content, opts.BaseURL)
	}
}

// ToText extracts text and joins the paragraphs with blank lines.
func ToText(content io.Reader, opts Options) (string, error) {
	paragraphs, err := Paragraphs(content, opts)
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// mainContent uses go-readability to find the article body
func mainContent(content io.Reader, baseURL *url.URL) ([]string, error) {
	if baseURL == nil {
		baseURL = &url.URL{}
	}

	article, err := readability.FromReader(content, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract main content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse main content: %w", err)
	}
	return paragraphsOf(doc.Selection)
}

// withSelector keeps only the elements matching a CSS selector
func withSelector(content io.Reader, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	selection := doc.Find(selector)
	if selection.Length() == 0 {
		return nil, fmt.Errorf("no elements found matching selector: %s", selector)
	}

	var paragraphs []string
	selection.Each(func(_ int, s *goquery.Selection) {
		if p, err := paragraphsOf(s); err == nil {
			paragraphs = append(paragraphs, p...)
		}
	})
	if len(paragraphs) == 0 {
		return nil, ErrNoContent
	}
	return paragraphs, nil
}

// allText keeps the whole body minus scripts and styles
func allText(content io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return paragraphsOf(body)
}

// paragraphsOf returns the text of each outermost block element under root, or the
// root text as a single paragraph when there are no block elements.
func paragraphsOf(root *goquery.Selection) ([]string, error) {
	var paragraphs []string

	blocks := root.Find(blockSelector)
	if root.Is(blockSelector) {
		blocks = blocks.AddSelection(root)
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		// nested blocks are covered by their outermost ancestor
		if s.ParentsFiltered(blockSelector).IsSelection(blocks) {
			return
		}
		if text := collapse(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		if text := collapse(root.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil, ErrNoContent
	}
	return paragraphs, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
