package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrportal/internal/domain/auth"
	"hrportal/internal/platform/config"
)

// Seed creates the configured superadmin when it does not exist yet. The
// account is approved and verified so it can log in immediately.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	email := strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail))
	if email == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		slog.Info("seed skipped: no superadmin credentials configured")
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO users (full_name, employee_id, cnic, email, role, is_approved, email_verified, password_hash)
    VALUES ($1, (SELECT COALESCE(MAX(employee_id), 0) + 1 FROM users), $2, $3, $4, true, true, $5)
    RETURNING id
  `, seedName(cfg.SeedAdminName), "seed-"+email, email, auth.RoleSuperAdmin, hash).Scan(&id)
	if err != nil {
		return err
	}
	slog.Info("seeded superadmin", "userId", id, "email", email)
	return nil
}

func seedName(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return "Super Admin"
}
