package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           7,
		DBMaxIdleConns:           3,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN_DefaultsSSLMode(t *testing.T) {
	dsn := DSN(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "inkwell"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=inkwell sslmode=disable", dsn)
}

func TestPersistentModels_AutoMigrateOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(PersistentModels()...))

	for _, table := range []string{"users", "follows", "tags", "tag_followers", "posts", "post_tags", "comments", "likes", "messages", "message_deletions", "notifications"} {
		assert.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}

	found := false
	for _, m := range PersistentModels() {
		if _, ok := m.(*models.Notification); ok {
			found = true
		}
	}
	assert.True(t, found, "PersistentModels should include Notification")
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)), logger.Warn)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_more.up.sql":   {Data: []byte("up2")},
		"m/000002_more.down.sql": {Data: []byte("down2")},
		"m/000001_init.up.sql":   {Data: []byte("up1")},
		"m/000001_init.down.sql": {Data: []byte("down1")},
		"m/README.md":            {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "init", got[0].Name)
	assert.Equal(t, "down1", got[0].DownScript)
	assert.Equal(t, "000002_more", got[1].String())
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"m/abc_x.up.sql": {Data: []byte("x")}, "m/abc_x.down.sql": {Data: []byte("x")}}, "m")
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{"m/000001_x.up.sql": {Data: []byte("x")}}, "m")
	assert.Error(t, err, "missing down script")
}

func TestEmbeddedMigrations(t *testing.T) {
	all, err := GetMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS notifications")

	m, err := GetMigrationByVersion(1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "init", m.Name)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name            string
		mode, env       string
		destructive     bool
		runSQL, runAuto bool
		unlocked        bool
		wantErr         bool
	}{
		{"hybrid dev", "hybrid", "development", false, true, true, false, false},
		{"hybrid prod", "", "production", false, true, false, false, false},
		{"hybrid staging", "hybrid", "staging", false, true, false, false, false},
		{"sql only", "sql", "development", false, true, false, false, false},
		{"auto dev", "auto", "development", false, false, true, false, false},
		{"auto prod refused", "auto", "production", false, false, false, false, true},
		{"auto prod allowed", "auto", "production", true, false, true, true, false},
		{"unknown", "yolo", "development", false, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&config.Config{DBSchemaMode: tt.mode, Env: tt.env, DBAutoMigrateAllowDestructive: tt.destructive})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, plan.RunSQL)
			assert.Equal(t, tt.runAuto, plan.RunAuto)
			assert.Equal(t, tt.unlocked, plan.Unlocked)
			assert.Equal(t, tt.env, plan.Environment)
			if tt.runSQL {
				assert.NotEmpty(t, plan.migrations)
			}
		})
	}
	plan, err := PlanSchema(&config.Config{Env: "development"})
	require.NoError(t, err)
	assert.Equal(t, SchemaModeHybrid, plan.Mode)
}

func TestSchemaPlan_StatusThenApply(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	ctx := context.Background()

	plan, err := PlanSchema(&config.Config{DBSchemaMode: SchemaModeSQL, Env: "production"})
	require.NoError(t, err)
	plan = plan.withMigrations([]Migration{
		{Version: 1, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE widgets"},
	})

	st, err := plan.Status(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "production", st.Environment)
	assert.True(t, st.RunSQL)
	assert.False(t, st.RunAuto)
	assert.Empty(t, st.AppliedVersions)
	require.Len(t, st.PendingMigrations, 1)

	require.NoError(t, plan.Apply(ctx, db))
	assert.True(t, db.Migrator().HasTable("widgets"))
	assert.False(t, db.Migrator().HasTable("posts"), "sql mode must not AutoMigrate")

	st, err = plan.Status(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, st.AppliedVersions)
	assert.Empty(t, st.PendingMigrations)

	auto, err := PlanSchema(&config.Config{DBSchemaMode: SchemaModeAuto, Env: "development"})
	require.NoError(t, err)
	st, err = auto.Status(ctx, db)
	require.NoError(t, err)
	assert.Nil(t, st.PendingMigrations, "auto mode does not consult the migration log")
	require.NoError(t, auto.Apply(ctx, db))
	assert.True(t, db.Migrator().HasTable("posts"))
}

func TestMigrator_UpDownOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	ctx := context.Background()

	migs := []Migration{
		{Version: 1, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE widgets"},
		{Version: 2, Name: "gadgets", UpScript: "CREATE TABLE gadgets (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE gadgets"},
	}
	m := NewMigrator(db, migs)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("gadgets"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")

	require.NoError(t, m.Down(ctx, 2))
	assert.False(t, db.Migrator().HasTable("gadgets"))
	pending, applied, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.Error(t, m.Down(ctx, 2), "not applied")
	assert.Error(t, m.Down(ctx, 9), "unknown version")
}

func TestMigrator_FailedScriptLeavesNoLog(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	ctx := context.Background()

	m := NewMigrator(db, []Migration{{Version: 1, Name: "broken", UpScript: "CREATE TABLE (", DownScript: ""}})
	_, err = m.Up(ctx)
	require.Error(t, err)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrator_DatabaseAheadOfCode(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	require.NoError(t, db.Create(&MigrationLog{Version: 7, Name: "future"}).Error)

	_, _, err = NewMigrator(db, nil).Pending(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}
