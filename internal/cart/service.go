package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/cache"
	"github.com/mtalha0777/arfurniture/internal/catalog"
	"golang.org/x/sync/singleflight"
)

// Catalog is the source of product names, shops and prices for new cart lines.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type Service struct {
	store   Store
	catalog Catalog
	cache   cache.CartCache
	logger  *slog.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewService(store Store, products Catalog, cartCache cache.CartCache, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		catalog: products,
		cache:   cartCache,
		logger:  logger,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cart cache get failed", "user_id", userID, "error", err)
		}

		cart, err = s.store.GetCart(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{
				UserID:    userID,
				Lines:     []domain.CartLine{},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
				s.logger.Warn("cart cache set failed", "user_id", userID, "error", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddLine puts the product into the user's cart at its current catalog price.
func (s *Service) AddLine(ctx context.Context, userID, productID string) error {
	line, err := s.lineFor(ctx, productID)
	if err != nil {
		return err
	}

	if err := s.store.AddLine(ctx, userID, line); err != nil {
		if !errors.Is(err, ErrDuplicateLine) {
			s.logger.ErrorContext(ctx, "add cart line failed", "user_id", userID, "product_id", productID, "error", err)
		}
		return err
	}

	s.invalidate(userID)
	return nil
}

func (s *Service) lineFor(ctx context.Context, productID string) (domain.CartLine, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			s.logger.ErrorContext(ctx, "catalog lookup failed", "product_id", productID, "error", err)
		}
		return domain.CartLine{}, err
	}
	if !p.Active {
		return domain.CartLine{}, fmt.Errorf("%w: %s", catalog.ErrProductUnavailable, productID)
	}
	return domain.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		ShopID:    p.ShopID,
	}, nil
}

func (s *Service) RemoveLine(ctx context.Context, userID, productID string) error {
	if err := s.store.RemoveLine(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			s.logger.ErrorContext(ctx, "remove cart line failed", "user_id", userID, "product_id", productID, "error", err)
		}
		return err
	}

	s.invalidate(userID)
	return nil
}

// Toggle adds the product when it is absent and removes it when present.
// It reports whether the product is in the cart afterwards. A product that can no
// longer be sold can still be toggled out of the cart.
func (s *Service) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	err := s.AddLine(ctx, userID, productID)
	if err == nil {
		return true, nil
	}
	unsellable := errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, catalog.ErrProductUnavailable)
	if !errors.Is(err, ErrDuplicateLine) && !unsellable {
		return false, err
	}

	errRemove := s.RemoveLine(ctx, userID, productID)
	if errors.Is(errRemove, ErrLineNotFound) || errors.Is(errRemove, ErrCartNotFound) {
		if unsellable {
			return false, err
		}
		// removed concurrently between the two calls
		return false, nil
	}
	if errRemove != nil {
		return false, errRemove
	}
	return false, nil
}

// Snapshot always reads the store. A cached cart may lag behind a concurrent edit
// and must never become the basis of an order.
func (s *Service) Snapshot(ctx context.Context, userID string) (*domain.CartSnapshot, error) {
	return s.store.Snapshot(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) (int, error) {
	n, err := s.store.Clear(ctx, userID)
	if err != nil {
		return n, err
	}

	s.invalidate(userID)
	return n, nil
}

func (s *Service) invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cart cache invalidate failed", "user_id", userID, "error", err)
	}
}
