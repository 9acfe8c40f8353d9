package render_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/gplusimport/pkg/export"
	"github.com/walteh/gplusimport/pkg/render"
)

// fakeRefs is a reference-resolution context with canned answers.
type fakeRefs struct {
	mentions map[string]string
	images   map[string]string
}

func (f *fakeRefs) ResolveMention(externalID string) (string, bool) {
	handle, ok := f.mentions[externalID]
	return handle, ok
}

func (f *fakeRefs) ResolveOrUploadImage(ctx context.Context, url, display string) (string, error) {
	if markup, ok := f.images[url]; ok {
		return markup, nil
	}
	return url, nil
}

func newRenderer(permissive bool) *render.Renderer {
	return &render.Renderer{
		Refs: &fakeRefs{
			mentions: map[string]string{"ext-42": "alice99"},
			images:   map[string]string{"https://img/photo.jpg": "\n![photo.jpg](upload://abc)"},
		},
		Permissive: permissive,
	}
}

func TestRenderPlainText(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Text{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestRenderStyledText(t *testing.T) {
	tests := []struct {
		style export.Style
		want  string
	}{
		{export.StyleBold, "<b>hello</b>"},
		{export.StyleItalic, "<i>hello</i>"},
		{export.StyleStrikethrough, "<s>hello</s>"},
	}
	for _, tt := range tests {
		got, err := newRenderer(false).Fragment(context.Background(), export.Text{Content: "hello", Style: tt.style})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRenderScrubsControlCharacters(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Text{Content: "a‍b"})
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	got, err = newRenderer(false).Fragment(context.Background(), export.Text{Content: "ab c"})
	require.NoError(t, err)
	assert.Equal(t, "ab c", got)
}

func TestRenderUnknownStyleFails(t *testing.T) {
	_, err := newRenderer(false).Fragment(context.Background(), export.Text{Content: "x", Style: export.StyleUnknown, RawStyle: "blink"})
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrUnknownStyle)
}

func TestRenderNewline(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Newline{})
	require.NoError(t, err)
	assert.Equal(t, "\n", got)
}

func TestRenderMentionResolved(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Mention{Name: "Alice", ExternalID: "ext-42"})
	require.NoError(t, err)
	// Trailing space kept: the source often omits it after mentions.
	assert.Equal(t, "@alice99 ", got)
}

func TestRenderMentionTombstoned(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Mention{Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "<b>+Bob</b>", got)
}

func TestRenderMentionUnresolvedFails(t *testing.T) {
	_, err := newRenderer(false).Fragment(context.Background(), export.Mention{Name: "Ghost", ExternalID: "ext-99"})
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrUnresolvedMention)
}

func TestRenderMentionUnresolvedPermissive(t *testing.T) {
	got, err := newRenderer(true).Fragment(context.Background(), export.Mention{Name: "Ghost", ExternalID: "ext-99"})
	require.NoError(t, err)
	assert.Equal(t, "<b>+Ghost</b>", got)
}

func TestRenderHashtag(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Hashtag{Tag: "caturday"})
	require.NoError(t, err)
	assert.Equal(t, "#caturday", got)
}

func TestRenderUnknownKindFails(t *testing.T) {
	_, err := newRenderer(false).Fragment(context.Background(), export.Unknown{Code: 9})
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrUnknownFragmentKind)
}

func TestRenderLinkDelegatesToImageResolution(t *testing.T) {
	got, err := newRenderer(false).Fragment(context.Background(), export.Link{Display: "photo", URL: "https://img/photo.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "\n![photo.jpg](upload://abc)", got)

	got, err = newRenderer(false).Fragment(context.Background(), export.Link{Display: "elsewhere", URL: "https://example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", got)
}

func TestRenderMessageInOrder(t *testing.T) {
	msg := export.Message{
		export.Text{Content: "hi "},
		export.Mention{Name: "Alice", ExternalID: "ext-42"},
		export.Newline{},
		export.Text{Content: "bye", Style: export.StyleBold},
	}
	got, err := newRenderer(false).Message(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "hi @alice99 \n<b>bye</b>", got)
}

func TestRenderPostAppendsImages(t *testing.T) {
	post := export.Post{
		Message: export.Message{export.Text{Content: "look"}},
		Image:   &export.Image{Proxy: "https://img/photo.jpg"},
		Images:  []export.Image{{Proxy: "https://img/other.jpg"}},
	}
	got, err := newRenderer(false).Post(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "look\n\n![photo.jpg](upload://abc)\n\nhttps://img/other.jpg\n", got)
}
