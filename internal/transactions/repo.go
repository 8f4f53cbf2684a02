package transactions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrDuplicateReference = errors.New("transaction reference already exists")
)

type Repo struct{ DB *pgxpool.Pool }

const txColumns = `id, product_package_id, client_id, reference, amount_cents,
	quantity, payment_method, status, created_at, updated_at`

func scanTx(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.ProductPackageID, &t.ClientID, &t.Reference, &t.AmountCents,
		&t.Quantity, &t.PaymentMethod, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Insert stores a new pending transaction. The unique index on reference is
// what detects gateway-side reference collisions.
func (r *Repo) Insert(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO transactions(id, product_package_id, client_id, reference,
			amount_cents, quantity, payment_method, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+txColumns,
		t.ID, t.ProductPackageID, t.ClientID, t.Reference,
		t.AmountCents, t.Quantity, t.PaymentMethod, t.Status)
	stored, err := scanTx(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Transaction{}, ErrDuplicateReference
		}
		return Transaction{}, err
	}
	return stored, nil
}

func (r *Repo) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE reference=$1`, reference)
	t, err := scanTx(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Settle moves a pending transaction to a terminal status as a single
// conditional UPDATE, so two concurrent settlement attempts for the same
// reference cannot both apply: first one wins, the second sees applied=false
// and gets the already-settled row back unchanged.
func (r *Repo) Settle(ctx context.Context, reference string, to Status) (Transaction, bool, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE transactions SET status=$2, updated_at=now()
		WHERE reference=$1 AND status='pending'
		RETURNING `+txColumns, reference, to)
	t, err := scanTx(row)
	if err == nil {
		return t, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, err
	}

	// nothing pending: either already settled (no-op) or unknown reference
	existing, err := r.FindByReference(ctx, reference)
	if err != nil {
		return Transaction{}, false, err
	}
	return existing, false, nil
}
