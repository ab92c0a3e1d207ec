package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createNamedUser(t *testing.T, db *gorm.DB, username, name string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "x", Name: name, Role: models.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestSearchService_RequiresQuery(t *testing.T) {
	h := newHarness(t)
	_, err := h.search.Search(context.Background(), "   ", 1, 10, nil)
	assertValidationError(t, err)
	_, err = h.search.Suggest(context.Background(), "", 5)
	assertValidationError(t, err)
}

func TestSearchService_RanksAuthors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	both := createNamedUser(t, h.db, "annwrites", "Ann Lee")
	nameOnly := createNamedUser(t, h.db, "zed", "Joanna")
	userOnly := createNamedUser(t, h.db, "banner", "Bruce")
	banned := createNamedUser(t, h.db, "anne", "Anne")
	require.NoError(t, h.db.Model(banned).Update("is_banned", true).Error)
	createNamedUser(t, h.db, "other", "Nobody")

	res, err := h.search.Search(ctx, "ann", 1, 10, nil)
	require.NoError(t, err)

	ids := make([]uint, 0, len(res.Authors.Data))
	for _, a := range res.Authors.Data {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uint{both.ID, nameOnly.ID, userOnly.ID}, ids)
	assert.Equal(t, int64(3), res.Authors.Total)
	assert.Equal(t, 3, res.Authors.Count)
}

func TestSearchService_Sections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := createNamedUser(t, h.db, "gopher", "Gopher")
	golang := testutil.CreateTag(t, h.db, "golang", 1)
	testutil.CreateTag(t, h.db, "python", 1)
	post := testutil.CreatePost(t, h.db, author, tagsOf(golang), testutil.WithTitle("Go generics"))
	testutil.CreatePost(t, h.db, author, nil, testutil.WithTitle("Pending go"), testutil.WithStatus(models.PostPending))

	res, err := h.search.Search(ctx, "GO", 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Posts.Data, 1)
	assert.Equal(t, post.ID, res.Posts.Data[0].ID)
	assert.Equal(t, int64(1), res.Posts.Total)
	require.Len(t, res.Tags.Data, 1)
	assert.Equal(t, "golang", res.Tags.Data[0].Name)
	require.Len(t, res.Authors.Data, 1)

	sugg, err := h.search.Suggest(ctx, "go", 0)
	require.NoError(t, err)
	require.Len(t, sugg.Posts, 1)
	assert.Equal(t, "Go generics", sugg.Posts[0].Title)
	require.Len(t, sugg.Tags, 1)
	assert.Equal(t, golang.Slug, sugg.Tags[0].Slug)
}
