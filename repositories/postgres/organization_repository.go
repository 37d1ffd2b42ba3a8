package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const organizationColumns = `id, name, slug, status, auth_epoch, created_at, updated_at`

// OrganizationRepository implements the repositories.OrganizationRepository interface
type OrganizationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB, logger *zap.Logger) repositories.OrganizationRepository {
	return &OrganizationRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Status,
		&org.AuthEpoch,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// Create creates a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, slug, status, auth_epoch, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Status,
		org.AuthEpoch,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return mapError("failed to create organization", err)
	}

	r.logger.Debug("organization created", zap.String("id", org.ID.String()), zap.String("slug", org.Slug))
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	org, err := scanOrganization(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(fmt.Sprintf("organization %s", id), err)
	}
	return org, nil
}

// List retrieves all organizations with pagination
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + `
		FROM organizations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organization rows: %w", err)
	}

	return orgs, nil
}

// Transition moves an organization between statuses and bumps its epoch in
// a single conditional UPDATE.
func (r *OrganizationRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.OrgStatus, minEpoch int64) (*models.Organization, error) {
	query := `
		UPDATE organizations
		SET status = $3,
		    auth_epoch = GREATEST(auth_epoch + 1, $4),
		    updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING ` + organizationColumns

	executor := GetExecutor(ctx, r.db)
	org, err := scanOrganization(executor.QueryRowContext(ctx, query, id, from, to, minEpoch, time.Now()))
	if err != nil {
		err = mapError(fmt.Sprintf("transition organization %s", id), err)
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		// Distinguish a missing row from one that left `from` concurrently.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("transition organization %s from %s: %w", id, from, repositories.ErrConflict)
	}

	r.logger.Debug("organization transitioned",
		zap.String("id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("auth_epoch", org.AuthEpoch))
	return org, nil
}
