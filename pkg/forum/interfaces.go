package forum

import (
	"context"
	"time"
)

// Identity links an external user id to an account on the forum.
type Identity struct {
	ExternalID string
	UserID     int64
	Username   string
	Email      string
}

// NewAccount describes an account to materialize for an external user
// that has never logged in. The synthetic email keeps the account
// addressable until the user authenticates and merges.
type NewAccount struct {
	ExternalID string
	Name       string
	Email      string
	Approved   bool
}

// Category is an opaque handle to a target category on the forum.
type Category struct {
	ID       int64
	Name     string
	ParentID int64
}

// Upload is the forum's record of one uploaded attachment.
type Upload struct {
	ID       int64
	ShortURL string
	Filename string
}

// TopicRecord is one normalized topic ready for persistence. It always
// carries a title and category and never a parent reference.
type TopicRecord struct {
	ExternalID string
	AuthorID   int64
	CreatedAt  time.Time
	Title      string
	Body       string
	Category   *Category
	Tags       []string
}

// ReplyRecord is one normalized reply bound to an emitted topic.
type ReplyRecord struct {
	ExternalID string
	AuthorID   int64
	CreatedAt  time.Time
	Body       string
	Topic      TopicRef
}

// TopicRef identifies a previously emitted topic.
type TopicRef struct {
	TopicID int64
}

// IdentityDirectory resolves external user ids against accounts the
// forum already knows about (typically via a prior import or a social
// login). A miss is (nil, nil), not an error.
type IdentityDirectory interface {
	FindByExternalID(ctx context.Context, externalID string) (*Identity, error)
}

// AccountWriter materializes new accounts and links them to their
// external ids for future runs.
type AccountWriter interface {
	CreateAccount(ctx context.Context, account NewAccount) (*Identity, error)
}

// CategoryDirectory looks up target categories by name. Two distinct
// subcategories may share a name under different parents, so the
// parent-qualified form is a separate operation, not an optional
// argument.
type CategoryDirectory interface {
	// FindCategory returns a top-level category by name, or (nil, nil).
	FindCategory(ctx context.Context, name string) (*Category, error)
	// FindSubcategory returns a category by name under the given
	// parent, or (nil, nil).
	FindSubcategory(ctx context.Context, name string, parent *Category) (*Category, error)
	// CreateCategory creates a category, optionally under a parent.
	CreateCategory(ctx context.Context, name string, parent *Category) (*Category, error)
}

// UploadWriter stores one attachment file on the forum.
type UploadWriter interface {
	UploadFile(ctx context.Context, localPath, filename string) (*Upload, error)
}

// ContentWriter persists normalized topic and reply records.
type ContentWriter interface {
	CreateTopic(ctx context.Context, topic *TopicRecord) (TopicRef, error)
	CreateReply(ctx context.Context, reply *ReplyRecord) error
}

// Forum is the full collaborator surface the importer drives.
type Forum interface {
	IdentityDirectory
	AccountWriter
	CategoryDirectory
	UploadWriter
	ContentWriter
}
