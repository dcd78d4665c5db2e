package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtalha0777/arfurniture/internal/catalog"
	"github.com/mtalha0777/arfurniture/internal/money"
)

type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]*catalog.Product, error)
}

type ProductsHandler struct {
	catalog  ProductCatalog
	currency money.Currency
	timeout  time.Duration
	logger   *slog.Logger
}

func NewProductsHandler(products ProductCatalog, currency money.Currency, timeout time.Duration, logger *slog.Logger) *ProductsHandler {
	return &ProductsHandler{
		catalog:  products,
		currency: currency,
		timeout:  timeout,
		logger:   logger,
	}
}

type ProductDTO struct {
	ID          string `json:"id"`
	ShopID      string `json:"shop_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	ModelURL    string `json:"model_url,omitempty"`
}

// GET /api/v1/products
func (h *ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	resp := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		resp = append(resp, ProductDTO{
			ID:          p.ID,
			ShopID:      p.ShopID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.Major(h.currency),
			Currency:    h.currency.Code,
			ModelURL:    p.ModelURL,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
