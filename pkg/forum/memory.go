package forum

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Memory is an in-process Forum. The CLI runs imports against it to
// validate an export end to end without a live forum, and tests use it
// in place of generated mocks.
type Memory struct {
	mu sync.Mutex

	identities map[string]*Identity // keyed by external id
	categories []*Category
	uploads    map[string]*Upload // keyed by local path
	topics     []*TopicRecord
	replies    []*ReplyRecord

	nextUserID     int64
	nextCategoryID int64
	nextTopicID    int64
	nextUploadID   int64
}

// NewMemory returns an empty in-memory forum.
func NewMemory() *Memory {
	return &Memory{
		identities: map[string]*Identity{},
		uploads:    map[string]*Upload{},
	}
}

// SeedIdentity registers an identity as already known to the forum, as
// if the user had logged in before the import.
func (m *Memory) SeedIdentity(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := id
	if copied.UserID == 0 {
		m.nextUserID++
		copied.UserID = m.nextUserID
	}
	m.identities[id.ExternalID] = &copied
}

// SeedCategory registers an existing target category and returns its
// handle so tests can seed subcategories under it.
func (m *Memory) SeedCategory(name string, parent *Category) *Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCategory(name, parent)
}

func (m *Memory) addCategory(name string, parent *Category) *Category {
	m.nextCategoryID++
	cat := &Category{ID: m.nextCategoryID, Name: name}
	if parent != nil {
		cat.ParentID = parent.ID
	}
	m.categories = append(m.categories, cat)
	return cat
}

func (m *Memory) FindByExternalID(ctx context.Context, externalID string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.identities[externalID]
	if !ok {
		return nil, nil
	}
	copied := *id
	return &copied, nil
}

func (m *Memory) CreateAccount(ctx context.Context, account NewAccount) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.identities[account.ExternalID]; ok {
		return nil, errors.Errorf("account for external id %s already exists", account.ExternalID)
	}

	m.nextUserID++
	id := &Identity{
		ExternalID: account.ExternalID,
		UserID:     m.nextUserID,
		Username:   usernameFor(account.Name, m.nextUserID),
		Email:      account.Email,
	}
	m.identities[account.ExternalID] = id

	zerolog.Ctx(ctx).Debug().
		Str("external_id", account.ExternalID).
		Str("username", id.Username).
		Msg("created account")

	copied := *id
	return &copied, nil
}

func (m *Memory) FindCategory(ctx context.Context, name string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cat := range m.categories {
		if cat.Name == name && cat.ParentID == 0 {
			copied := *cat
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindSubcategory(ctx context.Context, name string, parent *Category) (*Category, error) {
	if parent == nil {
		return nil, errors.New("parent category is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cat := range m.categories {
		if cat.Name == name && cat.ParentID == parent.ID {
			copied := *cat
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateCategory(ctx context.Context, name string, parent *Category) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.addCategory(name, parent)
	return &copied, nil
}

func (m *Memory) UploadFile(ctx context.Context, localPath, filename string) (*Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextUploadID++
	up := &Upload{
		ID:       m.nextUploadID,
		ShortURL: fmt.Sprintf("upload://%s", uuid.NewString()),
		Filename: filename,
	}
	m.uploads[localPath] = up
	copied := *up
	return &copied, nil
}

func (m *Memory) CreateTopic(ctx context.Context, topic *TopicRecord) (TopicRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTopicID++
	stored := *topic
	m.topics = append(m.topics, &stored)
	return TopicRef{TopicID: m.nextTopicID}, nil
}

func (m *Memory) CreateReply(ctx context.Context, reply *ReplyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reply.Topic.TopicID <= 0 || reply.Topic.TopicID > m.nextTopicID {
		return errors.Errorf("reply %s references unknown topic %d", reply.ExternalID, reply.Topic.TopicID)
	}
	stored := *reply
	m.replies = append(m.replies, &stored)
	return nil
}

// Topics returns every persisted topic in emission order.
func (m *Memory) Topics() []*TopicRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TopicRecord, len(m.topics))
	copy(out, m.topics)
	return out
}

// Replies returns every persisted reply in emission order.
func (m *Memory) Replies() []*ReplyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ReplyRecord, len(m.replies))
	copy(out, m.replies)
	return out
}

// UploadCount reports how many distinct files were uploaded.
func (m *Memory) UploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// usernameFor derives a forum username the way the import platform
// would: lowercase, spaces collapsed, disambiguated by user id.
func usernameFor(name string, userID int64) string {
	base := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	if base == "" {
		base = "imported_user"
	}
	return fmt.Sprintf("%s_%d", base, userID)
}

var _ Forum = (*Memory)(nil)
