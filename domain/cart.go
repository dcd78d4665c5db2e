package domain

import (
	"time"

	"github.com/mtalha0777/arfurniture/internal/money"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartLine holds the unit price captured when the product was added to the cart.
type CartLine struct {
	ProductID string       `bson:"product_id" json:"product_id"`
	Name      string       `bson:"name" json:"name"`
	UnitPrice money.Amount `bson:"unit_price" json:"unit_price"`
	ShopID    string       `bson:"shop_id" json:"shop_id"`
	AddedAt   time.Time    `bson:"added_at" json:"added_at"`
}
