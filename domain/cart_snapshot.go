package domain

import (
	"time"

	"github.com/mtalha0777/arfurniture/internal/money"
)

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	CartID     string     `json:"cart_id"`
	UserID     string     `json:"user_id"`
	Lines      []CartLine `json:"lines"`
	CapturedAt time.Time  `json:"captured_at"`
}

func (s *CartSnapshot) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}

func (s *CartSnapshot) Subtotal() (money.Amount, error) {
	prices := make([]money.Amount, 0, len(s.Lines))
	for _, l := range s.Lines {
		prices = append(prices, l.UnitPrice)
	}
	return money.Sum(prices...)
}
