package postgres

import (
	"context"
	"fmt"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userColumns = `id, email, name, password_hash, is_super_admin, disabled, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.IsSuperAdmin,
		&user.Disabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, is_super_admin, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.IsSuperAdmin,
		user.Disabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError("failed to create user", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	user, err := scanUser(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(fmt.Sprintf("user %s", id), err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	executor := GetExecutor(ctx, r.db)
	user, err := scanUser(executor.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, mapError("user by email", err)
	}
	return user, nil
}

// Update updates a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2,
		    password_hash = $3,
		    is_super_admin = $4,
		    disabled = $5,
		    updated_at = $6
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.PasswordHash,
		user.IsSuperAdmin,
		user.Disabled,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError("failed to update user", err)
	}
	if err := expectOneRow(fmt.Sprintf("update user %s", user.ID), result, repositories.ErrNotFound); err != nil {
		return err
	}

	r.logger.Debug("user updated", zap.String("id", user.ID.String()))
	return nil
}

// CountSuperAdmins returns the number of super-admin accounts
func (r *UserRepository) CountSuperAdmins(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE is_super_admin = true`

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count super admins: %w", err)
	}
	return count, nil
}
