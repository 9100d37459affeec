package models

import "time"

// MarketplaceItem is a purchasable good priced in Moolah. Items may carry a
// cosmetic icon that is granted to the buyer on purchase.
type MarketplaceItem struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     int       `db:"price" json:"price"`
	Icon      *string   `db:"icon" json:"icon,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
