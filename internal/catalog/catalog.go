package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPackageNotFound = errors.New("product package not found")

// Package is a priced catalog package a client can check out against.
// Pricing is read-only for the payment flow; amounts are minor units.
type Package struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Benefits   []string  `json:"benefits"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FindPackage(ctx context.Context, id string) (Package, error) {
	var p Package
	err := r.DB.QueryRow(ctx, `
		SELECT id, product_id, name, price_cents, benefits, created_at, updated_at
		FROM product_packages WHERE id=$1`, id).
		Scan(&p.ID, &p.ProductID, &p.Name, &p.PriceCents, &p.Benefits, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Package{}, ErrPackageNotFound
	}
	if err != nil {
		return Package{}, err
	}
	return p, nil
}

func (r *Repo) ListPackages(ctx context.Context) ([]Package, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, name, price_cents, benefits, created_at, updated_at
		FROM product_packages ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Name, &p.PriceCents, &p.Benefits, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
