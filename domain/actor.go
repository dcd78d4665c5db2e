package domain

import "slices"

type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID  string
	Email   string
	Role    Role
	ShopIDs []string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) OwnsShop(shopID string) bool {
	return a.Role == RoleSeller && slices.Contains(a.ShopIDs, shopID)
}

// SellsIn reports whether the actor owns a shop that sold at least one item of the order.
func (a Actor) SellsIn(o *Order) bool {
	for _, item := range o.Items {
		if a.OwnsShop(item.ShopID) {
			return true
		}
	}
	return false
}
