package notification

import (
	"fmt"
	"strings"

	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/money"
)

func orderConfirmation(e d.OrderPlacedEvent) Message {
	cur, err := money.LookupCurrency(e.Currency)
	if err != nil {
		cur = money.Currency{Code: e.Currency, Exponent: 2}
	}
	amount := func(a money.Amount) string {
		return a.Major(cur) + " " + cur.Code
	}

	var b strings.Builder
	b.WriteString("Thank you for your order.\n\n")
	fmt.Fprintf(&b, "Order: %s\n", e.OrderID)
	fmt.Fprintf(&b, "Placed: %s\n\n", e.CreatedAt.Format("2 Jan 2006 15:04 MST"))
	for _, item := range e.Items {
		fmt.Fprintf(&b, "  %s  %s\n", item.Name, amount(item.Price))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", amount(e.Subtotal))
	fmt.Fprintf(&b, "Shipping: %s\n", amount(e.ShippingCharge))
	fmt.Fprintf(&b, "Total: %s\n", amount(e.GrandTotal))

	return Message{
		To:      e.Email,
		Subject: fmt.Sprintf("Your order %s is confirmed", shortID(e.OrderID.String())),
		Body:    b.String(),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
