package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories/memory"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	args := m.Called(ctx, log)
	m.insertedLogs = append(m.insertedLogs, log)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, orgID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditLog(nil), m.insertedLogs...)
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start(), "cannot start twice")

	require.NoError(t, service.Stop(time.Second))
	assert.False(t, service.GetStats().Started)
	assert.ErrorIs(t, service.Stop(time.Second), ErrNotStarted)
}

func TestAuditService_LogEventBeforeStartAndAfterStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})

	event := &AuditEvent{Log: models.NewAuditLog(models.AuditActionLogin, "user")}
	assert.ErrorIs(t, service.LogEvent(event), ErrNotStarted)

	require.NoError(t, service.Start())
	require.NoError(t, service.Stop(time.Second))
	assert.ErrorIs(t, service.LogEvent(event), ErrNotStarted)
}

func TestAuditService_ProcessesEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 3})
	require.NoError(t, service.Start())

	for i := 0; i < 20; i++ {
		require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLogin, "user")}))
	}

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), 20)
}

func TestAuditService_RepositoryErrorIsLogged(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())
	require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLogin, "user")}))
	require.NoError(t, service.Stop(time.Second))

	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestAuditService_BufferFull(t *testing.T) {
	block := make(chan time.Time)
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).WaitUntil(block)

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, service.Start())

	var full bool
	for i := 0; i < 10; i++ {
		if err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLogin, "user")}); errors.Is(err, ErrBufferFull) {
			full = true
			break
		}
	}
	close(block)
	require.NoError(t, service.Stop(5*time.Second))

	assert.True(t, full)
}

func TestAuditService_Recorders(t *testing.T) {
	store := memory.NewStore(zap.NewNop())
	repo := store.Repositories().AuditLogs
	service := NewAuditService(repo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 1})
	require.NoError(t, service.Start())

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = WithRequestMeta(ctx, RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"})

	actor := uuid.New()
	org := models.NewOrganization("Acme", "acme")
	invite := models.NewInvite(org.ID, "a@example.com", models.RoleUser, "tok", time.Hour)
	membership := models.NewMembership(uuid.New(), org.ID, models.RoleUser)

	service.LogOrgCreated(ctx, org, actor)
	service.LogOrgTransition(ctx, models.AuditActionOrgDisabled, org, models.OrgStatusActive, actor, 3)
	service.LogInviteCreated(ctx, invite, actor)
	service.LogInviteAccepted(ctx, invite, membership.UserID, true)
	service.LogMembershipChanged(ctx, models.AuditActionMemberDisabled, membership, actor)
	service.LogLogin(ctx, actor, &org.ID)
	service.LogPasswordReset(ctx, membership.UserID, actor)

	require.NoError(t, service.Stop(5*time.Second))

	logs, err := service.ListForOrg(context.Background(), org.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 6, "password reset is not org scoped")
	for _, log := range logs {
		assert.Equal(t, "req-42", log.RequestID)
		assert.Equal(t, "10.0.0.1", log.IPAddress)
		assert.Equal(t, "test-agent", log.UserAgent)
	}
}

func TestAuditService_NilReceiverIsNoop(t *testing.T) {
	var service *AuditService
	assert.NotPanics(t, func() {
		service.LogLogin(context.Background(), uuid.New(), nil)
		assert.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLogin, "user")}))
	})
}
