package model

// InventoryChangeEvent is a stock delta pushed by the backend over the
// inventory sync channel.
type InventoryChangeEvent struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	NewStock  int    `json:"new_stock"`
}
