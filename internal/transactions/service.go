package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sojourn-travel/sojourn-payments/internal/catalog"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the persistence surface the service writes through. *Repo is the
// Postgres implementation; tests substitute a fake.
type Store interface {
	Insert(ctx context.Context, t Transaction) (Transaction, error)
	FindByReference(ctx context.Context, reference string) (Transaction, error)
	Settle(ctx context.Context, reference string, to Status) (Transaction, bool, error)
}

// PackagePricer resolves a product package id to its current price.
type PackagePricer interface {
	FindPackage(ctx context.Context, id string) (catalog.Package, error)
}

// Service is the only writer of transaction records.
type Service struct {
	Store    Store
	Packages PackagePricer
}

type CreateInput struct {
	ProductPackageID string
	ClientID         string
	Reference        string
	Quantity         int
	PaymentMethod    string
}

// Create validates the package, computes the amount from the current unit
// price and inserts a pending record under the gateway-issued reference.
func (s *Service) Create(ctx context.Context, in CreateInput) (Transaction, error) {
	if in.Reference == "" {
		return Transaction{}, fmt.Errorf("create transaction: missing reference")
	}
	if in.Quantity < 0 {
		return Transaction{}, fmt.Errorf("create transaction: negative quantity %d", in.Quantity)
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	method := in.PaymentMethod
	if method == "" {
		method = "lotus"
	}

	pkg, err := s.Packages.FindPackage(ctx, in.ProductPackageID)
	if err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:               uuid.NewString(),
		ProductPackageID: in.ProductPackageID,
		ClientID:         in.ClientID,
		Reference:        in.Reference,
		AmountCents:      pkg.PriceCents * int64(qty),
		Quantity:         qty,
		PaymentMethod:    method,
		Status:           StatusPending,
	}
	return s.Store.Insert(ctx, t)
}

// Settle applies the pending -> {success,failed} transition. Safe to call
// repeatedly with the same terminal status: once settled, later calls are
// no-ops returning the stored row (applied=false).
func (s *Service) Settle(ctx context.Context, reference string, to Status) (Transaction, bool, error) {
	if !CanTransition(StatusPending, to) {
		return Transaction{}, false, fmt.Errorf("%w: pending -> %s", ErrInvalidTransition, to)
	}
	return s.Store.Settle(ctx, reference, to)
}

func (s *Service) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	return s.Store.FindByReference(ctx, reference)
}
