package database

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan decides how the schema is brought up to date for one
// configuration. Build it with PlanSchema.
type SchemaPlan struct {
	Mode        string
	Environment string
	RunSQL      bool
	RunAuto     bool
	// Unlocked is set when AutoMigrate runs in a production-like
	// environment because DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE was given.
	Unlocked bool

	migrations []Migration
}

// SchemaStatus is a plan together with the versions it would apply.
type SchemaStatus struct {
	SchemaPlan
	AppliedVersions   []int
	PendingMigrations []Migration
}

func protectedEnv(env string) bool {
	switch env {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE against the environment. Hybrid mode
// never AutoMigrates a protected environment, and auto mode refuses one
// unless destructive migrations were explicitly allowed.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	p := SchemaPlan{Mode: cfg.DBSchemaMode, Environment: cfg.Env}
	if p.Mode == "" {
		p.Mode = SchemaModeHybrid
	}
	protected := protectedEnv(cfg.Env)

	switch p.Mode {
	case SchemaModeSQL:
		p.RunSQL = true
	case SchemaModeHybrid:
		p.RunSQL, p.RunAuto = true, !protected
	case SchemaModeAuto:
		if protected && !cfg.DBAutoMigrateAllowDestructive {
			return SchemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		p.RunAuto, p.Unlocked = true, protected
	default:
		return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", p.Mode)
	}

	if p.RunSQL {
		all, err := GetMigrations()
		if err != nil {
			return SchemaPlan{}, err
		}
		p.migrations = all
	}
	return p, nil
}

func (p SchemaPlan) withMigrations(m []Migration) SchemaPlan {
	p.migrations = m
	return p
}

// Apply runs the SQL migrations and then AutoMigrate, as planned.
func (p SchemaPlan) Apply(ctx context.Context, db *gorm.DB) error {
	if p.RunSQL {
		n, err := NewMigrator(db, p.migrations).Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "SQL migrations complete", slog.Int("applied", n))
	}
	if !p.RunAuto {
		return nil
	}
	if p.Unlocked {
		middleware.Logger.Warn("AutoMigrate unlocked for a protected environment; review schema diffs before deploying",
			slog.String("env", p.Environment))
	}
	middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", p.Mode), slog.String("env", p.Environment))
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Status reports the plan and, when SQL migrations run, which are pending.
func (p SchemaPlan) Status(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	status := &SchemaStatus{SchemaPlan: p}
	if !p.RunSQL {
		return status, nil
	}
	var err error
	status.PendingMigrations, status.AppliedVersions, err = NewMigrator(db, p.migrations).Pending(ctx)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ApplySchema plans and applies the schema for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	return plan.Apply(ctx, db)
}

func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	return plan.Status(ctx, db)
}
