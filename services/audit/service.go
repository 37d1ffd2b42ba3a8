package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when events are logged before Start or after Stop
	ErrNotStarted = errors.New("audit service not started")

	// ErrBufferFull is returned when the event buffer is full and the event was dropped
	ErrBufferFull = errors.New("audit event buffer full")
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 || config.WorkerCount <= 0 {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service
// Waits for all pending events to be processed
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent logs an event asynchronously (non-blocking)
// Returns immediately, event is processed in background
func (s *AuditService) LogEvent(event *AuditEvent) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("resource_type", event.Log.ResourceType))
		return ErrBufferFull
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// ListForOrg returns the audit trail of an organization, newest first
func (s *AuditService) ListForOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.auditRepo.ListByOrg(ctx, orgID, limit, offset)
}

// RequestMeta is the client metadata stamped on audit entries
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta stores client metadata in ctx
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func newLog(ctx context.Context, action models.AuditAction, resourceType string, actorID uuid.UUID) *models.AuditLog {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return models.NewAuditLog(action, resourceType).
		WithActor(actorID).
		WithRequest(middleware.GetReqID(ctx), meta.IPAddress, meta.UserAgent)
}

func (s *AuditService) record(log *models.AuditLog) {
	if s == nil {
		return
	}
	if err := s.LogEvent(&AuditEvent{Log: log}); err != nil && !errors.Is(err, ErrBufferFull) {
		s.logger.Warn("audit event not recorded", zap.String("action", string(log.Action)), zap.Error(err))
	}
}

// Convenience methods for logging common events

// LogOrgCreated logs an organization creation
func (s *AuditService) LogOrgCreated(ctx context.Context, org *models.Organization, actorID uuid.UUID) {
	s.record(newLog(ctx, models.AuditActionOrgCreated, "organization", actorID).
		WithOrg(org.ID).
		WithResource(org.ID).
		WithDetails(map[string]interface{}{"name": org.Name, "slug": org.Slug}))
}

// LogOrgTransition logs an organization lifecycle transition
func (s *AuditService) LogOrgTransition(ctx context.Context, action models.AuditAction, org *models.Organization, from models.OrgStatus, actorID uuid.UUID, purged int) {
	s.record(newLog(ctx, action, "organization", actorID).
		WithOrg(org.ID).
		WithResource(org.ID).
		WithDetails(map[string]interface{}{
			"from":            from,
			"to":              org.Status,
			"auth_epoch":      org.AuthEpoch,
			"sessions_purged": purged,
		}))
}

// LogInviteCreated logs an invite creation
func (s *AuditService) LogInviteCreated(ctx context.Context, invite *models.Invite, actorID uuid.UUID) {
	s.record(newLog(ctx, models.AuditActionInviteCreated, "invite", actorID).
		WithOrg(invite.OrgID).
		WithResource(invite.ID).
		WithDetails(map[string]interface{}{"email": invite.Email, "role": invite.Role}))
}

// LogInviteAccepted logs an invite redemption
func (s *AuditService) LogInviteAccepted(ctx context.Context, invite *models.Invite, userID uuid.UUID, created bool) {
	s.record(newLog(ctx, models.AuditActionInviteAccepted, "invite", userID).
		WithOrg(invite.OrgID).
		WithResource(invite.ID).
		WithDetails(map[string]interface{}{"role": invite.Role, "membership_created": created}))
}

// LogMembershipChanged logs a role change, disable/enable or admin grant
func (s *AuditService) LogMembershipChanged(ctx context.Context, action models.AuditAction, m *models.Membership, actorID uuid.UUID) {
	s.record(newLog(ctx, action, "membership", actorID).
		WithOrg(m.OrgID).
		WithResource(m.UserID).
		WithDetails(map[string]interface{}{"role": m.Role, "disabled": m.Disabled}))
}

// LogPasswordReset logs a super-admin setting a user's password
func (s *AuditService) LogPasswordReset(ctx context.Context, userID, actorID uuid.UUID) {
	s.record(newLog(ctx, models.AuditActionPasswordReset, "user", actorID).WithResource(userID))
}

// LogUserStatusChanged logs a super-admin disabling or enabling an account
func (s *AuditService) LogUserStatusChanged(ctx context.Context, action models.AuditAction, userID, actorID uuid.UUID) {
	s.record(newLog(ctx, action, "user", actorID).WithResource(userID))
}

// LogLogin logs a successful login
func (s *AuditService) LogLogin(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID) {
	log := newLog(ctx, models.AuditActionLogin, "user", userID).WithResource(userID)
	if orgID != nil {
		log.WithOrg(*orgID)
	}
	s.record(log)
}
