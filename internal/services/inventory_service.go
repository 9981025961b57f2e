package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/cadmium/internal/models"
)

const (
	defaultInventoryListLimit = 100
	maxInventoryListLimit     = 500
)

// InventoryRepository defines the inventory reads the service needs
type InventoryRepository interface {
	List(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error)
}

// InventoryService exposes the stock listing to management
type InventoryService struct {
	repo   InventoryRepository
	logger *slog.Logger
}

func NewInventoryService(repo InventoryRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{repo: repo, logger: logger}
}

// List returns items most recently updated first
func (s *InventoryService) List(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultInventoryListLimit
	}
	if filter.Limit > maxInventoryListLimit {
		filter.Limit = maxInventoryListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list inventory", slog.String("category", filter.Category), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return items, nil
}
