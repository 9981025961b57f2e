package models

import "time"

// InventoryItem is a stocked product as shown on the management panel
type InventoryItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"` // decimal text, e.g. "1500.00"
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InventoryFilter narrows the inventory listing
type InventoryFilter struct {
	Category string
	Limit    int
	Offset   int
}
