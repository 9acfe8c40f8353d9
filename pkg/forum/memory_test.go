package forum_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/gplusimport/pkg/forum"
)

func TestMemoryAccountLifecycle(t *testing.T) {
	memory := forum.NewMemory()
	ctx := context.Background()

	found, err := memory.FindByExternalID(ctx, "104235")
	require.NoError(t, err)
	assert.Nil(t, found)

	id, err := memory.CreateAccount(ctx, forum.NewAccount{
		ExternalID: "104235",
		Name:       "Alice Example",
		Email:      "104235@gplus.invalid",
		Approved:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice_example_1", id.Username)

	found, err = memory.FindByExternalID(ctx, "104235")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id.UserID, found.UserID)

	_, err = memory.CreateAccount(ctx, forum.NewAccount{ExternalID: "104235"})
	require.Error(t, err)
}

func TestMemoryCategoryLookupIsParentScoped(t *testing.T) {
	memory := forum.NewMemory()
	ctx := context.Background()

	garden := memory.SeedCategory("Garden", nil)
	memory.SeedCategory("Flowers", garden)

	top, err := memory.FindCategory(ctx, "Flowers")
	require.NoError(t, err)
	assert.Nil(t, top)

	sub, err := memory.FindSubcategory(ctx, "Flowers", garden)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, garden.ID, sub.ParentID)
}

func TestMemoryUploadsGetShortURLs(t *testing.T) {
	memory := forum.NewMemory()

	up, err := memory.UploadFile(context.Background(), "/data/photo.jpg", "photo.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.ShortURL, "upload://"), up.ShortURL)
	assert.Equal(t, "photo.jpg", up.Filename)
	assert.Equal(t, 1, memory.UploadCount())
}

func TestMemoryRejectsReplyToUnknownTopic(t *testing.T) {
	memory := forum.NewMemory()
	ctx := context.Background()

	err := memory.CreateReply(ctx, &forum.ReplyRecord{
		ExternalID: "comment-1",
		Topic:      forum.TopicRef{TopicID: 7},
	})
	require.Error(t, err)

	ref, err := memory.CreateTopic(ctx, &forum.TopicRecord{ExternalID: "post-1"})
	require.NoError(t, err)
	require.NoError(t, memory.CreateReply(ctx, &forum.ReplyRecord{
		ExternalID: "comment-1",
		Topic:      ref,
	}))
	assert.Len(t, memory.Replies(), 1)
}
