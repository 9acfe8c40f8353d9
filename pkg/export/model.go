package export

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// Feed is the root of one F+MG+E export document.
type Feed struct {
	Accounts []Account `json:"accounts"`
}

// Account is one exported Google+ account.
type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Communities []Community `json:"communities"`
}

// Community is one community the account belonged to.
type Community struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

// Category is one posting category inside a community.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Posts []Post `json:"posts"`
}

// Author identifies the writer of a post or comment.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is an attachment record carried at the post level rather than
// inline in the message.
type Image struct {
	Proxy string `json:"proxy"`
}

// Post is one Google+ post with its nested comments.
type Post struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	CreatedAt Timestamp `json:"createdAt"`
	Message   Message   `json:"message"`

	// The exporter emits both a singular and a plural image field.
	Image  *Image  `json:"image"`
	Images []Image `json:"images"`

	Comments []Comment `json:"comments"`
}

// Comment is one comment under a post.
type Comment struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	CreatedAt Timestamp `json:"createdAt"`
	Message   Message   `json:"message"`
}

// AttachedImages returns every post-level image in source order,
// merging the singular and plural fields.
func (p Post) AttachedImages() []Image {
	var images []Image
	if p.Image != nil && p.Image.Proxy != "" {
		images = append(images, *p.Image)
	}
	images = append(images, p.Images...)
	return images
}

// Timestamp decodes the export's createdAt values, which appear either
// as RFC 3339 strings or as millisecond epoch numbers depending on the
// exporter version.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}

	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return errors.Errorf("decoding timestamp: %w", err)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, raw); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return errors.Errorf("unsupported timestamp format %q", raw)
	}

	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Errorf("decoding timestamp %q: %w", s, err)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}
