package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryList(t *testing.T) {
	tests := []struct {
		name      string
		filter    models.InventoryFilter
		wantLimit int
	}{
		{"default limit", models.InventoryFilter{}, defaultInventoryListLimit},
		{"capped limit", models.InventoryFilter{Limit: 9999}, maxInventoryListLimit},
		{"explicit limit", models.InventoryFilter{Limit: 20, Category: "insumos"}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.InventoryFilter
			repo := &MockInventoryRepository{
				ListFunc: func(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
					got = filter
					return []*models.InventoryItem{{ID: "i1", Name: "Cafe en grano", UnitPrice: "8990.50"}}, nil
				},
			}
			svc := NewInventoryService(repo, discardLogger())

			items, err := svc.List(context.Background(), tt.filter)

			require.NoError(t, err)
			assert.Len(t, items, 1)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.filter.Category, got.Category)
		})
	}
}

func TestInventoryList_RepositoryError(t *testing.T) {
	repo := &MockInventoryRepository{
		ListFunc: func(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
			return nil, errors.New("relation does not exist")
		},
	}
	svc := NewInventoryService(repo, discardLogger())

	_, err := svc.List(context.Background(), models.InventoryFilter{})

	assert.Equal(t, models.ErrInternalServer, err)
}
