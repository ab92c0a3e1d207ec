package service

import (
	"context"
	"testing"

	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagService_AttachNormalizesAndCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tags, err := h.tags.Attach(ctx, []string{"  Go ", "go", "Web Dev"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0].Name)
	assert.Equal(t, int64(1), h.reloadTag(t, tags[0].ID).PostCount)

	again, err := h.tags.Attach(ctx, []string{"GO"})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, tags[0].ID, again[0].ID)
	assert.Equal(t, int64(2), h.reloadTag(t, tags[0].ID).PostCount)
}

func TestTagService_AttachKeepsDistinctNamesApart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tags, err := h.tags.Attach(ctx, []string{"日本", "中文", "c++", "c"})
	require.NoError(t, err)
	require.Len(t, tags, 4)
	seen := map[uint]string{}
	for i, want := range []string{"日本", "中文", "c++", "c"} {
		assert.Equal(t, want, tags[i].Name)
		assert.Equal(t, int64(1), h.reloadTag(t, tags[i].ID).PostCount)
		seen[tags[i].ID] = tags[i].Name
	}
	assert.Len(t, seen, 4)

	author := testutil.CreateUser(t, h.db, "author")
	post := testutil.CreatePost(t, h.db, author, tagsOf(tags[1]))
	testutil.CreatePost(t, h.db, author, tagsOf(tags[0]))

	page, err := h.feed.Assemble(ctx, FeedQuery{Tags: []string{"中文"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{post.ID}, postIDs(page.Posts))
}

func TestTagService_DetachFloorsAtZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tag := testutil.CreateTag(t, h.db, "rust", 1)

	require.NoError(t, h.tags.Detach(ctx, tagsOf(tag)))
	require.NoError(t, h.tags.Detach(ctx, tagsOf(tag)))
	assert.Zero(t, h.reloadTag(t, tag.ID).PostCount)
}

func TestTagService_TopByPopularitySkipsUnused(t *testing.T) {
	h := newHarness(t)
	testutil.CreateTag(t, h.db, "alpha", 3)
	testutil.CreateTag(t, h.db, "beta", 7)
	testutil.CreateTag(t, h.db, "gamma", 0)

	top, err := h.tags.TopByPopularity(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "beta", top[0].Name)
	assert.Equal(t, "alpha", top[1].Name)
}

func TestTagService_ToggleFollow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, h.db, "reader")
	tag := testutil.CreateTag(t, h.db, "go", 1)

	res, err := h.tags.ToggleFollow(ctx, user.ID, tag.Slug)
	require.NoError(t, err)
	assert.True(t, res.Following)

	affinity, err := h.tags.AffinityFor(ctx, user.ID, 5)
	require.NoError(t, err)
	require.Len(t, affinity, 1)
	assert.Equal(t, tag.ID, affinity[0].ID)

	res, err = h.tags.ToggleFollow(ctx, user.ID, tag.Slug)
	require.NoError(t, err)
	assert.False(t, res.Following)

	_, err = h.tags.ToggleFollow(ctx, user.ID, "nope")
	assertNotFoundError(t, err)
}
