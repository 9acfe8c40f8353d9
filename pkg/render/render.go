// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package render turns message fragments into forum markup. Markdown
// does not nest the same way the source markup (or what users intended)
// did, so styled runs are rendered as HTML codes.
package render

import (
	"context"
	"strings"

	"github.com/walteh/gplusimport/pkg/export"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrUnknownStyle means the source encoding has drifted from the
	// known style vocabulary.
	ErrUnknownStyle = errors.New("text style not recognized")

	// ErrUnknownFragmentKind means a fragment kind outside the known
	// vocabulary was encountered.
	ErrUnknownFragmentKind = errors.New("fragment kind not recognized")

	// ErrUnresolvedMention means a mention references an external id
	// with no known identity.
	ErrUnresolvedMention = errors.New("mentioned user not imported")
)

// Context resolves cross-references while rendering. Mention lookups
// and image uploads are the only two ways a fragment can reach outside
// its own text.
type Context interface {
	// ResolveMention maps an external user id to a forum handle.
	ResolveMention(externalID string) (string, bool)
	// ResolveOrUploadImage returns inline-image markup when the URL is
	// a known downloaded asset, or plain-link markup otherwise.
	ResolveOrUploadImage(ctx context.Context, url, display string) (string, error)
}

// Renderer renders messages against one reference-resolution context.
type Renderer struct {
	Refs Context

	// Permissive degrades an unresolvable mention to a visible bold
	// placeholder instead of failing the run. Dry runs set this so
	// rendering exercises every path without account creation.
	Permissive bool
}

// Stray zero-width joiners break @name recognition (they are common
// after plus-references), and 0x80 and non-breaking spaces show up in
// the wild too.
var textScrubber = strings.NewReplacer(
	"‍", "",
	"", "",
	" ", " ",
)

// Message renders every fragment of a message in order.
func (r *Renderer) Message(ctx context.Context, msg export.Message) (string, error) {
	var b strings.Builder
	for i, frag := range msg {
		rendered, err := r.Fragment(ctx, frag)
		if err != nil {
			return "", errors.Errorf("rendering fragment %d: %w", i, err)
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

// Post renders a post's message followed by its post-level images,
// each on its own line through the same image-resolution path.
func (r *Renderer) Post(ctx context.Context, post export.Post) (string, error) {
	body, err := r.Message(ctx, post.Message)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(body)
	for _, image := range post.AttachedImages() {
		markup, err := r.Refs.ResolveOrUploadImage(ctx, image.Proxy, image.Proxy)
		if err != nil {
			return "", errors.Errorf("rendering attached image %s: %w", image.Proxy, err)
		}
		b.WriteString("\n")
		b.WriteString(markup)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Fragment renders a single fragment.
func (r *Renderer) Fragment(ctx context.Context, frag export.Fragment) (string, error) {
	switch f := frag.(type) {
	case export.Text:
		return renderText(f)
	case export.Newline:
		return "\n", nil
	case export.Link:
		return r.Refs.ResolveOrUploadImage(ctx, f.URL, f.Display)
	case export.Mention:
		return r.renderMention(f)
	case export.Hashtag:
		// The leading hash is literal, and the source text does not
		// carry one.
		return "#" + f.Tag, nil
	default:
		return "", errors.Errorf("%w: code %d", ErrUnknownFragmentKind, int(frag.Kind()))
	}
}

func renderText(f export.Text) (string, error) {
	text := textScrubber.Replace(f.Content)
	switch f.Style {
	case export.StyleNone:
		return text, nil
	case export.StyleItalic:
		return "<i>" + text + "</i>", nil
	case export.StyleBold:
		return "<b>" + text + "</b>", nil
	case export.StyleStrikethrough:
		// s more likely than del to represent user intent
		return "<s>" + text + "</s>", nil
	default:
		return "", errors.Errorf("%w: %q", ErrUnknownStyle, f.RawStyle)
	}
}

func (r *Renderer) renderMention(f export.Mention) (string, error) {
	if f.Tombstoned() {
		// Deleted accounts show up with a null id; render a visible
		// literal rather than dropping the reference.
		return "<b>+" + f.Name + "</b>", nil
	}
	if handle, ok := r.Refs.ResolveMention(f.ExternalID); ok {
		// The source occasionally omits the space after a mention;
		// the trailing space keeps @name recognition working.
		return "@" + handle + " ", nil
	}
	if r.Permissive {
		return "<b>+" + f.Name + "</b>", nil
	}
	return "", errors.Errorf("%w: %s (id %s)", ErrUnresolvedMention, f.Name, f.ExternalID)
}
