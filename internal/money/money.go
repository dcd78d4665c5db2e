package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in the currency's minor unit (paise for INR, cents for USD).
// Every amount stored, summed or sent to the payment gateway is an Amount; decimal
// major-unit strings only exist at the API boundary.
type Amount int64

// MaxAmount bounds every single amount and every sum, leaving headroom below int64.
const MaxAmount Amount = 1 << 62

var (
	ErrInvalidAmount = errors.New("invalid monetary amount")
	ErrOverflow      = errors.New("monetary amount out of range")
)

type Currency struct {
	Code     string
	Exponent int32
}

var (
	INR = Currency{Code: "INR", Exponent: 2}
	USD = Currency{Code: "USD", Exponent: 2}
	JPY = Currency{Code: "JPY", Exponent: 0}
)

var known = map[string]Currency{
	INR.Code: INR,
	USD.Code: USD,
	JPY.Code: JPY,
}

// LookupCurrency resolves an ISO 4217 code (case-insensitive).
func LookupCurrency(code string) (Currency, error) {
	c, ok := known[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}

// ParseMajor converts a decimal string in major units ("1299.50") to minor units.
// Values with more fractional digits than the currency allows are rejected instead
// of rounded, as are negative values.
func ParseMajor(s string, c Currency) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return FromDecimal(d, c)
}

func FromDecimal(d decimal.Decimal, c Currency) (Amount, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, d.String())
	}
	minor := d.Shift(c.Exponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d.String(), c.Exponent)
	}
	if !minor.LessThanOrEqual(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return Amount(minor.IntPart()), nil
}

// Major renders the amount in major units with exactly Exponent decimal places.
func (a Amount) Major(c Currency) string {
	return decimal.New(int64(a), -c.Exponent).StringFixed(c.Exponent)
}

// Sum adds amounts. It fails instead of wrapping when an amount is negative or the
// total would exceed MaxAmount.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		if a < 0 || a > MaxAmount-total {
			return 0, fmt.Errorf("%w: sum exceeds %d", ErrOverflow, MaxAmount)
		}
		total += a
	}
	return total, nil
}
