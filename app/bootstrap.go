package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services/password"
	"go.uber.org/zap"
)

// SeedSuperAdmin creates the configured super-admin if it does not exist.
// An existing account is never promoted since super-admins hold no
// memberships. It reports whether an account was created.
func (d *Dependencies) SeedSuperAdmin(ctx context.Context) (bool, error) {
	cfg := d.Config.Bootstrap
	email := models.NormalizeEmail(cfg.SuperAdminEmail)
	if email == "" {
		return false, nil
	}
	if len(cfg.SuperAdminPassword) < password.MinLength {
		return false, fmt.Errorf("SUPERADMIN_PASSWORD must be at least %d characters", password.MinLength)
	}

	existing, err := d.Repos.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsSuperAdmin {
			d.Logger.Warn("bootstrap email belongs to a regular account, not promoting",
				zap.String("user_id", existing.ID.String()))
		}
		return false, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return false, fmt.Errorf("failed to look up super-admin: %w", err)
	}

	hash, err := d.Hasher.Hash(cfg.SuperAdminPassword)
	if err != nil {
		return false, fmt.Errorf("failed to hash super-admin password: %w", err)
	}
	user := models.NewUser(email, "Super Admin")
	user.SetPasswordHash(hash)
	user.IsSuperAdmin = true

	if err := d.Repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Another replica seeded it first
			return false, nil
		}
		return false, fmt.Errorf("failed to create super-admin: %w", err)
	}

	count, err := d.Repos.Users.CountSuperAdmins(ctx)
	if err != nil {
		d.Logger.Warn("failed to count super-admins", zap.Error(err))
	}
	d.Logger.Info("super-admin seeded",
		zap.String("user_id", user.ID.String()),
		zap.Int("super_admins", count))
	return true, nil
}
