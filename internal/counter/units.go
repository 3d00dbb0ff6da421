package counter

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// CharCounter counts Unicode characters (runes), not bytes.
type CharCounter struct{}

// NewCharCounter creates a new CharCounter instance.
func NewCharCounter() Counter {
	return &CharCounter{}
}

// Count returns the number of runes in the given text.
func (cc *CharCounter) Count(text string) int {
	return utf8.RuneCountInString(text)
}

// Name returns the name of this unit.
func (cc *CharCounter) Name() string {
	return "characters"
}

// WordCounter counts whitespace-separated words.
type WordCounter struct{}

// NewWordCounter creates a new WordCounter instance.
func NewWordCounter() Counter {
	return &WordCounter{}
}

// Count returns the number of words, splitting on any Unicode whitespace.
func (wc *WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// Name returns the name of this unit.
func (wc *WordCounter) Name() string {
	return "words"
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

// cl100k loads the encoding once per process; the BPE ranks are large.
func cl100k() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		log.Debug().Msg("Loading cl100k_base encoding")
		encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoding, encodingErr
}

// TokenCounter counts cl100k_base tokens. Safe for concurrent use.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// NewTokenCounter creates a TokenCounter with the shared cl100k_base encoding.
func NewTokenCounter() (Counter, error) {
	enc, err := cl100k()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cl100k_base encoding: %w", err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// Count returns the number of tokens in the given text.
func (tc *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	tc.mu.RLock()
	defer tc.mu.RUnlock()

	// nil params: no special tokens allowed or disallowed
	return len(tc.encoding.Encode(text, nil, nil))
}

// Name returns the name of this unit.
func (tc *TokenCounter) Name() string {
	return "tokens (cl100k_base)"
}
