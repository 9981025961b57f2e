package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_Record(t *testing.T) {
	var stored *models.AuditLog
	repo := &MockAuditLogRepository{
		CreateFunc: func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
			stored = log
			return log, nil
		},
	}
	svc := NewAuditService(repo, discardLogger())

	svc.Record(context.Background(), AuditEntry{
		ActorID:        "a1",
		Action:         models.AuditActionCreate,
		Module:         models.AuditModuleAccounts,
		AffectedObject: "jperez",
		Description:    "account created",
		Details:        models.AuditMetadata{"k": "v"},
	})

	require.NotNil(t, stored)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "a1", *stored.ActorID)
	assert.Nil(t, stored.IPAddress, "empty address is stored as NULL")
	assert.Equal(t, "jperez", stored.AffectedObject)
	assert.Equal(t, "v", stored.Details["k"])
}

func TestAuditService_RecordSwallowsErrors(t *testing.T) {
	repo := &MockAuditLogRepository{
		CreateFunc: func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
			return nil, errors.New("disk full")
		},
	}
	svc := NewAuditService(repo, discardLogger())

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), AuditEntry{Action: models.AuditActionLogin, Module: models.AuditModuleAuth})
	})
}

func TestAuditService_ListClampsFilter(t *testing.T) {
	var got models.AuditFilter
	repo := &MockAuditLogRepository{
		ListFunc: func(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
			got = filter
			return []*models.AuditLog{}, nil
		},
	}
	svc := NewAuditService(repo, discardLogger())
	ctx := context.Background()

	_, err := svc.List(ctx, models.AuditFilter{Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, defaultAuditListLimit, got.Limit)
	assert.Equal(t, 0, got.Offset)

	_, err = svc.List(ctx, models.AuditFilter{Limit: 10000, Module: models.AuditModuleAuth})
	require.NoError(t, err)
	assert.Equal(t, maxAuditListLimit, got.Limit)
	assert.Equal(t, models.AuditModuleAuth, got.Module)
}

func TestAuditService_Cleanup(t *testing.T) {
	repo := &MockAuditLogRepository{
		CleanupFunc: func(ctx context.Context, olderThanDays int) (int64, error) {
			assert.Equal(t, 365, olderThanDays)
			return 7, nil
		},
	}
	svc := NewAuditService(repo, discardLogger())

	deleted, err := svc.Cleanup(context.Background(), 365)

	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}
