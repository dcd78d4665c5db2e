package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/mtalha0777/arfurniture/internal/money"
	_ "modernc.org/sqlite"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available for sale")
)

// Product is the catalog's current view of an item. Its price is what a cart line
// captures when the product is added.
type Product struct {
	ID          string
	ShopID      string
	Name        string
	Description string
	Price       money.Amount
	ModelURL    string
	Active      bool
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	// every connection to ":memory:" would see its own empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping catalog database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// GetProduct returns ErrProductNotFound for an unknown id. Inactive products are returned
// as they are; callers that sell them must check Active.
func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	query := `
		SELECT id, shop_id, name, description, price, model_url, active
		FROM products
		WHERE id = ?
	`

	p := &Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.ShopID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ModelURL,
		&p.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*Product, error) {
	query := `
		SELECT id, shop_id, name, description, price, model_url, active
		FROM products
		WHERE active = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p := &Product{}
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Description, &p.Price, &p.ModelURL, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// SetPrice changes the live price. Lines already in carts or orders keep the price they
// captured.
func (r *Repository) SetPrice(ctx context.Context, id string, price money.Amount) error {
	if price <= 0 || price > money.MaxAmount {
		return fmt.Errorf("%w: %d", money.ErrInvalidAmount, price)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE products SET price = ? WHERE id = ?`, price, id)
	if err != nil {
		return fmt.Errorf("failed to update product price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update product price: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
