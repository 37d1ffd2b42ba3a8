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

const inviteColumns = `id, token, email, org_id, role, invited_by, expires_at, accepted, accepted_at, created_at`

// InviteRepository implements the repositories.InviteRepository interface
type InviteRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *DB, logger *zap.Logger) repositories.InviteRepository {
	return &InviteRepository{
		db:     db,
		logger: logger,
	}
}

func scanInvite(row rowScanner) (*models.Invite, error) {
	inv := &models.Invite{}
	err := row.Scan(
		&inv.ID,
		&inv.Token,
		&inv.Email,
		&inv.OrgID,
		&inv.Role,
		&inv.InvitedBy,
		&inv.ExpiresAt,
		&inv.Accepted,
		&inv.AcceptedAt,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts a new invite
func (r *InviteRepository) Create(ctx context.Context, inv *models.Invite) error {
	query := `
		INSERT INTO invites (id, token, email, org_id, role, invited_by, expires_at, accepted, accepted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		inv.ID,
		inv.Token,
		inv.Email,
		inv.OrgID,
		inv.Role,
		inv.InvitedBy,
		inv.ExpiresAt,
		inv.Accepted,
		inv.AcceptedAt,
		inv.CreatedAt,
	)
	if err != nil {
		return mapError("failed to create invite", err)
	}

	r.logger.Debug("invite created", zap.String("id", inv.ID.String()), zap.String("org_id", inv.OrgID.String()))
	return nil
}

// GetByToken retrieves an invite by its token
func (r *InviteRepository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token = $1`

	executor := GetExecutor(ctx, r.db)
	inv, err := scanInvite(executor.QueryRowContext(ctx, query, token))
	if err != nil {
		return nil, mapError("invite by token", err)
	}
	return inv, nil
}

// DeletePending removes unaccepted invites for (email, orgID)
func (r *InviteRepository) DeletePending(ctx context.Context, email string, orgID uuid.UUID) (int64, error) {
	query := `DELETE FROM invites WHERE email = $1 AND org_id = $2 AND accepted = false`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, models.NormalizeEmail(email), orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending invites: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// DeletePendingByOrg removes every unaccepted invite of an org
func (r *InviteRepository) DeletePendingByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	query := `DELETE FROM invites WHERE org_id = $1 AND accepted = false`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending invites of org: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// MarkAccepted flags a pending invite as accepted
func (r *InviteRepository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE invites SET accepted = true, accepted_at = $2 WHERE id = $1 AND accepted = false`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to accept invite: %w", err)
	}
	return expectOneRow(fmt.Sprintf("accept invite %s", id), result, repositories.ErrConflict)
}

// ListPending retrieves unaccepted invites of an org
func (r *InviteRepository) ListPending(ctx context.Context, orgID uuid.UUID) ([]*models.Invite, error) {
	query := `SELECT ` + inviteColumns + `
		FROM invites
		WHERE org_id = $1 AND accepted = false
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite rows: %w", err)
	}
	return invites, nil
}
