// Package tokenizer turns document lines into index words. It lower-cases
// ASCII, splits on single spaces and keeps punctuation unless asked to strip
// it, so "cat." and "cat" are distinct words by default.
package tokenizer

import (
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// MaxWordLength is the longest word, in bytes, that the index accepts.
const MaxWordLength = 64

// Options controls tokenization.
type Options struct {
	// StripPunctuation trims leading and trailing ASCII punctuation from
	// every word and drops words that become empty.
	StripPunctuation bool
}

// Tokenize splits one line of text into lower-cased words. A trailing "\n"
// or "\r\n" is removed first; empty tokens from repeated spaces are skipped.
func Tokenize(line string, opts Options) []string {
	line = TrimEOL(line)
	if line == "" {
		return nil
	}
	line = lowerASCII(line)
	fields := strings.Split(line, " ")
	words := fields[:0]
	for _, w := range fields {
		if opts.StripPunctuation {
			w = strings.TrimFunc(w, isASCIIPunct)
		}
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	return words
}

// TrimEOL removes one trailing line terminator, "\n" or "\r\n".
func TrimEOL(line string) string {
	if strings.HasSuffix(line, "\n") {
		line = line[:len(line)-1]
		line = strings.TrimSuffix(line, "\r")
	}
	return line
}

// Classify returns ErrUnindexableWord when word cannot be placed in a letter
// partition: it is empty, too long, or does not start with a-z.
func Classify(word string) error {
	if word == "" {
		return apperrors.New(apperrors.ErrUnindexableWord, http.StatusBadRequest, "empty word")
	}
	if len(word) > MaxWordLength {
		return apperrors.Newf(apperrors.ErrUnindexableWord, http.StatusBadRequest,
			"word of %d bytes exceeds limit of %d", len(word), MaxWordLength)
	}
	if c := word[0]; c < 'a' || c > 'z' {
		return apperrors.Newf(apperrors.ErrUnindexableWord, http.StatusBadRequest,
			"word %q does not start with a letter", word)
	}
	return nil
}

// lowerASCII lower-cases A-Z only and leaves every other byte untouched.
func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

func isASCIIPunct(r rune) bool {
	switch {
	case r >= '!' && r <= '/':
	case r >= ':' && r <= '@':
	case r >= '[' && r <= '`':
	case r >= '{' && r <= '~':
	default:
		return false
	}
	return true
}
