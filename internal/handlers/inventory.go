package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/cadmium/internal/models"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
)

// InventoryServiceInterface defines the inventory listing contract
type InventoryServiceInterface interface {
	List(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error)
}

// InventoryHandler serves the read-only stock listing
type InventoryHandler struct {
	service InventoryServiceInterface
}

func NewInventoryHandler(service InventoryServiceInterface) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// InventoryListResponse is returned by GET /panel/inventory
type InventoryListResponse struct {
	Items  []*models.InventoryItem `json:"items"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// List handles GET /panel/inventory?category=
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100, 500)
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if err := ValidateVar(category, "max=100"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid category")
		return
	}

	items, err := h.service.List(r.Context(), models.InventoryFilter{Category: category, Limit: limit, Offset: offset})
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if items == nil {
		items = []*models.InventoryItem{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, InventoryListResponse{Items: items, Limit: limit, Offset: offset})
}
