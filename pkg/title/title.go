// Package title synthesizes topic titles for untitled free-text posts.
// Google+ had no titles, so one is made up from the leading words of
// the message under a punctuation-aware heuristic.
package title

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/walteh/gplusimport/pkg/export"
)

// Config holds the synthesis knobs.
type Config struct {
	// MinWords is the minimum word count before falling back; short
	// posts rarely work as titles in practice.
	MinWords int
	// MaxWords caps how many leading words are considered.
	MaxWords int
	// MinChars is the minimum total character count before falling
	// back; the target platform has a minimum title length.
	MinChars int
	// MaxLength is the hard display-length guard, in runes.
	MaxLength int
}

// DefaultConfig mirrors the values the import was tuned with.
func DefaultConfig() Config {
	return Config{
		MinWords:  3,
		MaxWords:  14,
		MinChars:  12,
		MaxLength: 254,
	}
}

// Synthesize builds a title from a message. When the message carries
// too little text it falls back to Fallback.
func Synthesize(msg export.Message, author string, createdAt time.Time, cfg Config) string {
	words := Words(msg)

	// Character count, not bytes: multibyte text must clear the same bar.
	joined := strings.Join(words, "")
	if len(words) == 0 || utf8.RuneCountInString(joined) < cfg.MinChars || len(words) < cfg.MinWords {
		return Fallback(author, createdAt)
	}

	if len(words) > cfg.MaxWords {
		words = words[:cfg.MaxWords]
	}

	// Prefer a full stop; fall back on weaker punctuation. Always the
	// latest qualifying word, never the first, to favor longer titles.
	last := -1
	for i := 3; i < len(words); i++ {
		if strings.HasSuffix(words[i], ".") {
			last = i
		}
	}
	if last < 0 {
		for i := 3; i < len(words); i++ {
			if endsWithAny(words[i], ",", ";", ":", "?") {
				last = i
			}
		}
	}
	if last >= 0 {
		words = words[:last+1]
	}

	return truncate(strings.Join(words, " "), cfg.MaxLength)
}

// Fallback is the fixed title used when a post has no usable text,
// typically an image or album post.
func Fallback(author string, createdAt time.Time) string {
	return fmt.Sprintf("Post by %s on %s", author, createdAt.UTC().Format("2006-01-02 15:04:05 MST"))
}

// Words extracts the title word sequence from a message: plain-text
// runs split on whitespace, tombstoned mention names, and link display
// text kept as a single word. Newlines and hashtags contribute nothing.
func Words(msg export.Message) []string {
	var words []string
	for _, frag := range msg {
		switch f := frag.(type) {
		case export.Text:
			words = append(words, strings.Fields(f.Content)...)
		case export.Mention:
			if f.Tombstoned() {
				words = append(words, strings.Fields(f.Name)...)
			}
		case export.Link:
			if f.Display != "" {
				words = append(words, f.Display)
			}
		}
	}
	return words
}

func endsWithAny(word string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(word, s) {
			return true
		}
	}
	return false
}

// truncate hard-cuts to max runes. Deliberately not word-aware; this
// is a last-resort length guard, not formatting.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
