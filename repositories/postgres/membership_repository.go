package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const membershipColumns = `id, user_id, org_id, role, disabled, created_at, updated_at`

// MembershipRepository implements the repositories.MembershipRepository interface
type MembershipRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB, logger *zap.Logger) repositories.MembershipRepository {
	return &MembershipRepository{
		db:     db,
		logger: logger,
	}
}

func scanMembership(row rowScanner) (*models.Membership, error) {
	m := &models.Membership{}
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.OrgID,
		&m.Role,
		&m.Disabled,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create creates a new membership
func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (id, user_id, org_id, role, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.OrgID,
		m.Role,
		m.Disabled,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return mapError("failed to create membership", err)
	}

	r.logger.Debug("membership created",
		zap.String("user_id", m.UserID.String()),
		zap.String("org_id", m.OrgID.String()),
		zap.String("role", string(m.Role)))
	return nil
}

// Get retrieves the membership for (userID, orgID)
func (r *MembershipRepository) Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 AND org_id = $2`

	executor := GetExecutor(ctx, r.db)
	m, err := scanMembership(executor.QueryRowContext(ctx, query, userID, orgID))
	if err != nil {
		return nil, mapError(fmt.Sprintf("membership %s/%s", orgID, userID), err)
	}
	return m, nil
}

// ListByUser retrieves all memberships of a user
func (r *MembershipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating membership rows: %w", err)
	}
	return memberships, nil
}

// ListMembers retrieves the members of an org joined with their user
func (r *MembershipRepository) ListMembers(ctx context.Context, orgID uuid.UUID, role *models.Role) ([]*models.MemberView, error) {
	query := `
		SELECT u.id, u.email, u.name, m.role, m.disabled, m.created_at, u.password_hash IS NOT NULL
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1 AND ($2::text IS NULL OR m.role = $2)
		ORDER BY m.created_at ASC
	`

	var roleArg interface{}
	if role != nil {
		roleArg = string(*role)
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, orgID, roleArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.MemberView
	for rows.Next() {
		v := &models.MemberView{}
		if err := rows.Scan(&v.UserID, &v.Email, &v.Name, &v.Role, &v.Disabled, &v.JoinedAt, &v.HasAccount); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}

// Update updates role and disabled flag of a membership
func (r *MembershipRepository) Update(ctx context.Context, m *models.Membership) error {
	query := `
		UPDATE memberships
		SET role = $3,
		    disabled = $4,
		    updated_at = $5
		WHERE user_id = $1 AND org_id = $2
	`

	m.UpdatedAt = time.Now()
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, m.UserID, m.OrgID, m.Role, m.Disabled, m.UpdatedAt)
	if err != nil {
		return mapError("failed to update membership", err)
	}
	if err := expectOneRow(fmt.Sprintf("update membership %s/%s", m.OrgID, m.UserID), result, repositories.ErrNotFound); err != nil {
		return err
	}

	r.logger.Debug("membership updated",
		zap.String("user_id", m.UserID.String()),
		zap.String("org_id", m.OrgID.String()),
		zap.String("role", string(m.Role)),
		zap.Bool("disabled", m.Disabled))
	return nil
}

// DeleteByOrg removes every membership of an organization
func (r *MembershipRepository) DeleteByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	query := `DELETE FROM memberships WHERE org_id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memberships: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Debug("memberships deleted", zap.String("org_id", orgID.String()), zap.Int64("count", deleted))
	return deleted, nil
}
