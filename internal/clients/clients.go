package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrClientNotFound = errors.New("client not found")

// Client is an onboarded API caller. Only the identity fields the payment
// flow needs; onboarding itself lives elsewhere.
type Client struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Repo struct{ DB *pgxpool.Pool }

// FindByAPIKey resolves an X-Api-Key header value to a client identity.
func (r *Repo) FindByAPIKey(ctx context.Context, apiKey string) (Client, error) {
	var c Client
	err := r.DB.QueryRow(ctx,
		`SELECT id, name, email FROM clients WHERE api_key=$1 AND active`, apiKey).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrClientNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (Client, error) {
	var c Client
	err := r.DB.QueryRow(ctx,
		`SELECT id, name, email FROM clients WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrClientNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}
