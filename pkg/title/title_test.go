package title_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/walteh/gplusimport/pkg/export"
	"github.com/walteh/gplusimport/pkg/title"
)

var createdAt = time.Date(2019, 1, 2, 10, 30, 0, 0, time.UTC)

func textMessage(words string) export.Message {
	return export.Message{export.Text{Content: words}}
}

func TestFallbackForShortMessage(t *testing.T) {
	got := title.Synthesize(textMessage("hi there"), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, "Post by Alice on 2019-01-02 10:30:00 UTC", got)
}

func TestFallbackForEmptyMessage(t *testing.T) {
	got := title.Synthesize(export.Message{}, "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, title.Fallback("Alice", createdAt), got)
}

func TestFallbackForTooFewCharacters(t *testing.T) {
	// Three words but only nine characters, below the minimum.
	got := title.Synthesize(textMessage("am so hap"), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, title.Fallback("Alice", createdAt), got)
}

func TestFallbackCountsCharactersNotBytes(t *testing.T) {
	// Four characters across four words; twelve bytes of UTF-8 must not
	// clear the twelve-character minimum.
	got := title.Synthesize(textMessage("日 本 語 字"), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, title.Fallback("Alice", createdAt), got)
}

func TestKeepsWholeShortSentence(t *testing.T) {
	got := title.Synthesize(textMessage("Great day today."), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, "Great day today.", got)
}

func TestTruncatesAtLatestFullStop(t *testing.T) {
	// Both terminators are in range; the later one wins.
	got := title.Synthesize(textMessage("The quick fox ran. And jumped."), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, "The quick fox ran. And jumped.", got)
}

func TestTruncatesAtEarlierFullStopWhenLastWordsHaveNone(t *testing.T) {
	got := title.Synthesize(textMessage("The quick fox ran. And jumped over the lazy dog"), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, "The quick fox ran.", got)
}

func TestFullStopBeforeIndexThreeDoesNotCount(t *testing.T) {
	got := title.Synthesize(textMessage("Oh. what a lovely day for walking"), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, "Oh. what a lovely day for walking", got)
}

func TestFallsBackToWeakerPunctuation(t *testing.T) {
	got := title.Synthesize(textMessage("When in the course of events, things happen"), "Alice", createdAt, title.DefaultConfig())
	assert.Equal(t, "When in the course of events,", got)
}

func TestCapsAtMaxWords(t *testing.T) {
	got := title.Synthesize(
		textMessage("one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen"),
		"Alice", createdAt, title.DefaultConfig(),
	)
	assert.Equal(t, "one two three four five six seven eight nine ten eleven twelve thirteen fourteen", got)
}

func TestHardLengthGuard(t *testing.T) {
	long := "supercalifragilisticexpialidocious"
	msg := textMessage(long + " " + long + " " + long)
	cfg := title.DefaultConfig()
	cfg.MaxLength = 40

	got := title.Synthesize(msg, "Alice", createdAt, cfg)
	assert.Len(t, []rune(got), 40)
}

func TestWordsExtraction(t *testing.T) {
	msg := export.Message{
		export.Text{Content: "look at this"},
		export.Newline{},
		export.Link{Display: "my photo album", URL: "https://example.com/a"},
		export.Mention{Name: "Old Friend"},
		export.Mention{Name: "Alice", ExternalID: "ext-1"},
		export.Hashtag{Tag: "pics"},
	}

	words := title.Words(msg)
	// Link display text stays one word; resolvable mentions and
	// hashtags contribute nothing.
	assert.Equal(t, []string{"look", "at", "this", "my photo album", "Old", "Friend"}, words)
}
