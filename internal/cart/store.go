package cart

import (
	"context"
	"errors"

	"github.com/mtalha0777/arfurniture/domain"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrLineNotFound       = errors.New("line not found in cart")
	ErrDuplicateLine      = errors.New("product already in cart")
	ErrStorageUnavailable = errors.New("cart storage unavailable")
)

// Store holds each user's pending cart lines.
// Whether a duplicate add should merge, replace or toggle is the caller's decision;
// the store only reports ErrDuplicateLine.
type Store interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID string, line domain.CartLine) error
	RemoveLine(ctx context.Context, userID, productID string) error
	// Snapshot returns the current lines without mutating state. A user without a
	// cart gets an empty snapshot.
	Snapshot(ctx context.Context, userID string) (*domain.CartSnapshot, error)
	// Clear removes every line and returns how many were removed.
	Clear(ctx context.Context, userID string) (int, error)
}
