// Package counter measures sample length in one of several units.
//
// Corpus preparation keeps only samples whose length falls inside a window, and the
// chunk splitter cuts long documents to a maximum length. Both take a Counter, so
// the unit can be characters (the default), whitespace-separated words or
// cl100k_base tokens via tiktoken.
//
// Usage Example:
//
//	c, err := counter.NewCounter(counter.Characters)
//	n := c.Count("hola, ¿qué tal?") // 15
package counter

import (
	"fmt"
	"strings"
)

// Counter defines the interface for different length units.
type Counter interface {
	// Count returns the number of units (characters, words or tokens) in the text.
	Count(text string) int

	// Name returns a human-readable name for this unit (for logging)
	Name() string
}

// CountingMethod represents the different available units.
type CountingMethod int

const (
	// Characters counts Unicode code points including whitespace (default)
	Characters CountingMethod = iota
	// Words counts words using whitespace splitting
	Words
	// Tokens uses tiktoken with cl100k_base encoding
	Tokens
)

// String returns the string representation of the counting method.
func (cm CountingMethod) String() string {
	switch cm {
	case Characters:
		return "characters"
	case Words:
		return "words"
	case Tokens:
		return "tokens"
	default:
		return "unknown"
	}
}

// ParseCountingMethod maps a unit name (as given to --length-unit) to a CountingMethod.
func ParseCountingMethod(s string) (CountingMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "characters", "chars", "runes":
		return Characters, nil
	case "words":
		return Words, nil
	case "tokens":
		return Tokens, nil
	default:
		return Characters, fmt.Errorf("unknown length unit %q (want characters, words or tokens)", s)
	}
}

// NewCounter creates a Counter for the given method.
// Only the token counter can fail, when the tiktoken encoding cannot be loaded.
func NewCounter(method CountingMethod) (Counter, error) {
	switch method {
	case Tokens:
		return NewTokenCounter()
	case Words:
		return NewWordCounter(), nil
	default:
		return NewCharCounter(), nil
	}
}

// InRange reports whether text measures between min and max units inclusive.
// A max of zero or less means no upper bound.
func InRange(c Counter, text string, min, max int) bool {
	n := c.Count(text)
	if n < min {
		return false
	}
	return max <= 0 || n <= max
}
