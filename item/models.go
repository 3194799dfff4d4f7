// Package item defines the notebook catalog and its stock.
package item

import (
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/types"
)

// Item is a catalog entry. StockQuantity never goes negative.
type Item struct {
	types.Entity
	ID            id.ItemID   `json:"id"`
	Title         string      `json:"title"`
	UnitPrice     types.Money `json:"unit_price"`
	StockQuantity int64       `json:"stock_quantity"`
}

// LowStock reports whether the remaining stock is below threshold.
func (i Item) LowStock(threshold int64) bool {
	return i.StockQuantity < threshold
}

// ListOpts filters item listings.
type ListOpts struct {
	Search     string
	BelowStock int64 // when > 0, only items with StockQuantity < BelowStock
	Limit      int
	Offset     int
}
