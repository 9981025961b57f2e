package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BradenHooton/cadmium/internal/handlers"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryList(t *testing.T) {
	var got models.InventoryFilter
	service := &handlers.MockInventoryService{
		ListFunc: func(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
			got = filter
			return []*models.InventoryItem{{ID: "i1", Name: "Cafe en grano", Quantity: 12, UnitPrice: "8990.50"}}, nil
		},
	}
	h := handlers.NewInventoryHandler(service)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/panel/inventory?category=insumos&limit=5", nil))

	var resp handlers.InventoryListResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "8990.50", resp.Items[0].UnitPrice)
	assert.Equal(t, "insumos", got.Category)
	assert.Equal(t, 5, got.Limit)
}

func TestInventoryList_Errors(t *testing.T) {
	t.Run("category too long", func(t *testing.T) {
		h := handlers.NewInventoryHandler(&handlers.MockInventoryService{})

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/panel/inventory?category="+strings.Repeat("x", 101), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("service failure", func(t *testing.T) {
		h := handlers.NewInventoryHandler(&handlers.MockInventoryService{
			ListFunc: func(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
				return nil, errors.New("boom")
			},
		})

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/panel/inventory", nil))

		handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
	})
}
