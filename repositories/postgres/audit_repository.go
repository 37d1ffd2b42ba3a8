package postgres

import (
	"context"
	"fmt"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, org_id, actor_id, action, resource_type, resource_id,
			details, ip_address, user_agent, request_id, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	var details interface{}
	if len(log.Details) > 0 {
		details = []byte(log.Details)
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.OrgID,
		log.ActorID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// ListByOrg retrieves audit logs for an organization with pagination
func (r *AuditRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, org_id, actor_id, action, resource_type, resource_id,
		       details, ip_address, user_agent, request_id, timestamp
		FROM audit_logs
		WHERE org_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		var details []byte
		err := rows.Scan(
			&log.ID,
			&log.OrgID,
			&log.ActorID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&details,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Details = details
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
