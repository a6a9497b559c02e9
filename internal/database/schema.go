package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-voting/internal/auth"
	"ms-voting/internal/config"
	"ms-voting/internal/database/migrations"
	"ms-voting/internal/logger"
	"ms-voting/internal/models"
)

// DefaultStands is the floor-plan layout seeded into an empty stands table.
var DefaultStands = []models.Stand{
	{ID: 1, Name: "S1", PosX: -4.5, PosZ: -3.5, Color: "#ef4444"},
	{ID: 2, Name: "S2", PosX: -1.5, PosZ: -3.5, Color: "#3b82f6"},
	{ID: 3, Name: "S3", PosX: 1.5, PosZ: -3.5, Color: "#06b6d4"},
	{ID: 4, Name: "S4", PosX: 4.5, PosZ: -3.5, Color: "#f59e0b"},
	{ID: 5, Name: "S5", PosX: 4.5, PosZ: -1.17, Color: "#06b6d4"},
	{ID: 6, Name: "S6", PosX: 4.5, PosZ: 1.17, Color: "#f97316"},
	{ID: 7, Name: "S7", PosX: 4.5, PosZ: 3.5, Color: "#f59e0b"},
	{ID: 8, Name: "S8", PosX: 2.25, PosZ: 3.5, Color: "#ec4899"},
	{ID: 9, Name: "S9", PosX: 0, PosZ: 3.5, Color: "#8b5cf6"},
	{ID: 10, Name: "S10", PosX: -2.25, PosZ: 3.5, Color: "#ec4899"},
	{ID: 11, Name: "S11", PosX: -4.5, PosZ: 3.5, Color: "#ef4444"},
	{ID: 12, Name: "S12", PosX: -4.5, PosZ: 1.17, Color: "#14b8a6"},
	{ID: 13, Name: "S13", PosX: -4.5, PosZ: -1.17, Color: "#a855f7"},
}

const defaultStandSize = 36

// voteFieldsCheck keeps has_voted, voted_for and voted_at in lockstep.
const voteFieldsCheck = `CHECK ((has_voted AND voted_for IS NOT NULL AND voted_at IS NOT NULL)
	OR (NOT has_voted AND voted_for IS NULL AND voted_at IS NULL))`

// schemaTables mirrors migrations/sql/000001_init.up.sql, including its
// table checks.
var schemaTables = []struct {
	model  interface{}
	checks []string
}{
	{(*models.Stand)(nil), nil},
	{(*models.Club)(nil), []string{"CHECK (vote_count >= 0)"}},
	{(*models.Ticket)(nil), []string{voteFieldsCheck}},
	{(*models.Vote)(nil), nil},
	{(*models.Admin)(nil), []string{"CHECK (role IN ('admin', 'superadmin'))"}},
}

// Prepare brings the schema up to date, seeds stands and bootstraps the
// first administrator.
func Prepare(ctx context.Context, db *bun.DB, cfg *config.Config, log *logger.Logger) error {
	if cfg.Database.Driver == DriverPostgres {
		if cfg.Database.AutoMigrate {
			runner := migrations.NewRunner(db.DB, log)
			if err := runner.MigrateUp(ctx); err != nil {
				return err
			}
		}
	} else if err := CreateSchema(ctx, db); err != nil {
		return err
	}

	seeded, err := SeedStands(ctx, db)
	if err != nil {
		return err
	}
	if seeded > 0 {
		log.LogDatabase("SEED", "stands", fmt.Sprintf("Seeded %d stands", seeded))
	}

	return BootstrapAdmin(ctx, db, cfg.Bootstrap, log)
}

// CreateSchema creates every table and index if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, table := range schemaTables {
		q := db.NewCreateTable().Model(table.model).IfNotExists()
		for _, check := range table.checks {
			q = q.ColumnExpr(check)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table failed: %w", err)
		}
	}

	indexes := []struct {
		model  interface{}
		name   string
		column string
	}{
		{(*models.Ticket)(nil), "idx_students_voted_for", "voted_for"},
		{(*models.Vote)(nil), "idx_votes_club_id", "club_id"},
		{(*models.Vote)(nil), "idx_votes_student_id", "student_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s failed: %w", idx.name, err)
		}
	}
	return nil
}

// SeedStands inserts the default layout when the table is empty and reports
// how many rows were written.
func SeedStands(ctx context.Context, db bun.IDB) (int, error) {
	count, err := db.NewSelect().Model((*models.Stand)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count stands failed: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	stands := make([]models.Stand, len(DefaultStands))
	copy(stands, DefaultStands)
	for i := range stands {
		stands[i].Available = true
		stands[i].WidthM = defaultStandSize
		stands[i].DepthM = defaultStandSize
	}

	if _, err := db.NewInsert().Model(&stands).Exec(ctx); err != nil {
		return 0, fmt.Errorf("seed stands failed: %w", err)
	}
	return len(stands), nil
}

// BootstrapAdmin creates the configured administrator when no admin exists.
func BootstrapAdmin(ctx context.Context, db bun.IDB, cfg config.BootstrapConfig, log *logger.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	count, err := db.NewSelect().Model((*models.Admin)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count admins failed: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	role := cfg.AdminRole
	if role != models.RoleSuperadmin {
		role = models.RoleAdmin
	}

	admin := &models.Admin{Username: cfg.AdminUsername, PasswordHash: hash, Role: role}
	if _, err := db.NewInsert().Model(admin).Exec(ctx); err != nil {
		return fmt.Errorf("bootstrap admin failed: %w", err)
	}

	log.LogSecurity("BOOTSTRAP", fmt.Sprintf("Created %s account %q", role, cfg.AdminUsername))
	return nil
}
