package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InventoryItem is a stocked consumable (tubes, reagents, controls).
type InventoryItem struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SKU          string             `bson:"sku" json:"sku" validate:"required"`
	Name         string             `bson:"name" json:"name" validate:"required"`
	Category     string             `bson:"category,omitempty" json:"category,omitempty"`
	Quantity     int                `bson:"quantity" json:"quantity" validate:"gte=0"`
	Unit         string             `bson:"unit,omitempty" json:"unit,omitempty"`
	ReorderLevel int                `bson:"reorderLevel" json:"reorderLevel" validate:"gte=0"`
	Lot          string             `bson:"lot,omitempty" json:"lot,omitempty"`
	ExpiresAt    *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LowStock reports whether the item is at or below its reorder level.
func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= i.ReorderLevel
}
