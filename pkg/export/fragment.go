package export

import (
	"encoding/json"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Kind identifies the wire code of a message fragment. The F+MG+E
// export encodes each fragment as a tagged tuple [kind, text, extra]
// where the meaning of the third slot depends on the kind.
type Kind int

const (
	KindText    Kind = 0
	KindNewline Kind = 1
	KindLink    Kind = 2
	KindMention Kind = 3
	KindHashtag Kind = 4
)

// Style is the closed set of text decorations a plain-text fragment can
// carry. StyleUnknown is decoded (not dropped) so the renderer can fail
// loudly on vocabulary drift instead of silently corrupting history.
type Style int

const (
	StyleNone Style = iota
	StyleItalic
	StyleBold
	StyleStrikethrough
	StyleUnknown
)

func (s Style) String() string {
	switch s {
	case StyleNone:
		return "none"
	case StyleItalic:
		return "italic"
	case StyleBold:
		return "bold"
	case StyleStrikethrough:
		return "strikethrough"
	default:
		return "unknown"
	}
}

// Fragment is one typed unit of a rich-text message. Exactly one
// concrete type exists per wire kind; fragments are immutable once
// decoded.
type Fragment interface {
	Kind() Kind
}

// Text is a run of plain text, optionally styled.
type Text struct {
	Content string
	Style   Style

	// RawStyle preserves the original style keys when Style is
	// StyleUnknown, for error messages.
	RawStyle string
}

func (Text) Kind() Kind { return KindText }

// Newline is a forced line break. The text slot of the tuple is
// ignored; the break is the whole meaning.
type Newline struct{}

func (Newline) Kind() Kind { return KindNewline }

// Link is a hyperlink. Display holds the user-visible text, URL the
// target. For downloaded attachments the exporter puts the real URL in
// the display slot.
type Link struct {
	Display string
	URL     string
}

func (Link) Kind() Kind { return KindLink }

// Mention references another account. ExternalID is empty for
// tombstoned mentions of deleted accounts.
type Mention struct {
	Name       string
	ExternalID string
}

func (Mention) Kind() Kind { return KindMention }

// Tombstoned reports whether the mentioned account was deleted
// upstream and can never be resolved.
func (m Mention) Tombstoned() bool { return m.ExternalID == "" }

// Hashtag is a tag reference. Tag does not include the leading hash.
type Hashtag struct {
	Tag string
}

func (Hashtag) Kind() Kind { return KindHashtag }

// Unknown preserves a fragment whose kind code is outside the known
// vocabulary. Decoding keeps it so the renderer can reject the whole
// run with a descriptive error.
type Unknown struct {
	Code int
}

func (u Unknown) Kind() Kind { return Kind(u.Code) }

// Message is the ordered fragment sequence of one post or comment.
// Order is meaning-bearing: it defines render order.
type Message []Fragment

func (m *Message) UnmarshalJSON(data []byte) error {
	var tuples []json.RawMessage
	if err := json.Unmarshal(data, &tuples); err != nil {
		return errors.Errorf("decoding message: %w", err)
	}

	msg := make(Message, 0, len(tuples))
	for i, tuple := range tuples {
		frag, err := decodeFragment(tuple)
		if err != nil {
			return errors.Errorf("decoding fragment %d: %w", i, err)
		}
		msg = append(msg, frag)
	}
	*m = msg
	return nil
}

func decodeFragment(data []byte) (Fragment, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return nil, errors.Errorf("fragment is not a tuple: %w", err)
	}
	if len(tuple) == 0 {
		return nil, errors.New("fragment tuple is empty")
	}

	var code int
	if err := json.Unmarshal(tuple[0], &code); err != nil {
		return nil, errors.Errorf("fragment kind: %w", err)
	}

	text := ""
	if len(tuple) > 1 {
		// The text slot may be null (seen on newline tuples).
		if err := json.Unmarshal(tuple[1], &text); err != nil && string(tuple[1]) != "null" {
			return nil, errors.Errorf("fragment text: %w", err)
		}
	}

	var extra json.RawMessage
	if len(tuple) > 2 {
		extra = tuple[2]
	}

	switch Kind(code) {
	case KindText:
		style, raw, err := decodeStyle(extra)
		if err != nil {
			return nil, err
		}
		return Text{Content: text, Style: style, RawStyle: raw}, nil
	case KindNewline:
		return Newline{}, nil
	case KindLink:
		url := ""
		if isPresent(extra) {
			if err := json.Unmarshal(extra, &url); err != nil {
				return nil, errors.Errorf("link target: %w", err)
			}
		}
		return Link{Display: text, URL: url}, nil
	case KindMention:
		id := ""
		if isPresent(extra) {
			// Numeric ids show up in older exports; normalize to string.
			var asString string
			if err := json.Unmarshal(extra, &asString); err == nil {
				id = asString
			} else {
				var asNumber json.Number
				if err := json.Unmarshal(extra, &asNumber); err != nil {
					return nil, errors.Errorf("mention id: %w", err)
				}
				id = asNumber.String()
			}
		}
		return Mention{Name: text, ExternalID: id}, nil
	case KindHashtag:
		return Hashtag{Tag: text}, nil
	default:
		return Unknown{Code: code}, nil
	}
}

// decodeStyle maps the style object of a plain-text tuple onto the
// Style enum. The export marks exactly one decoration with a truthy
// value; a style object carrying none of the known keys decodes to
// StyleUnknown.
func decodeStyle(extra json.RawMessage) (Style, string, error) {
	if !isPresent(extra) {
		return StyleNone, "", nil
	}

	var flags map[string]bool
	if err := json.Unmarshal(extra, &flags); err != nil {
		return StyleNone, "", errors.Errorf("text style: %w", err)
	}

	switch {
	case flags["italic"]:
		return StyleItalic, "", nil
	case flags["bold"]:
		return StyleBold, "", nil
	case flags["strikethrough"]:
		return StyleStrikethrough, "", nil
	}

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	return StyleUnknown, strings.Join(keys, ","), nil
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
