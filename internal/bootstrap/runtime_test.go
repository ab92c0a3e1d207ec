package bootstrap

import (
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "root",
		DevRootEmail:     "Root@Inkwell.local",
		DevRootPassword:  "RootPassword123!",
	}
}

func TestEnsureDevRootAdmin_CreatesRoot(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, EnsureDevRootAdmin(devConfig(), db))
	require.NoError(t, EnsureDevRootAdmin(devConfig(), db))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "root@inkwell.local", users[0].Email)
	assert.True(t, users[0].IsAdmin())
}

func TestEnsureDevRootAdmin_PromotesExisting(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	existing := testutil.CreateUser(t, db, "someone")
	require.NoError(t, db.Model(existing).Updates(map[string]any{"email": "root@inkwell.local", "is_banned": true}).Error)

	require.NoError(t, EnsureDevRootAdmin(devConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, existing.ID).Error)
	assert.True(t, root.IsAdmin())
	assert.False(t, root.IsBanned)
}

func TestEnsureDevRootAdmin_Guards(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	prod := devConfig()
	prod.Env = "production"
	require.NoError(t, EnsureDevRootAdmin(prod, db))

	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.Zero(t, n)

	weak := devConfig()
	weak.DevRootPassword = "short"
	assert.Error(t, EnsureDevRootAdmin(weak, db))

	missing := devConfig()
	missing.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(missing, db))
}
