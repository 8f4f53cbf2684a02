package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Notification struct {
	ID        string
	EventID   string
	ClientID  string
	Reference string
	Kind      string // payment_settled | payment_failed
	Message   string
	CreatedAt time.Time
}

type Repo struct{ DB *pgxpool.Pool }

// Record is idempotent on event_id so a redelivered settlement event cannot
// produce a second notification row.
func (r *Repo) Record(ctx context.Context, n Notification) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, event_id, client_id, reference, kind, message)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (event_id) DO NOTHING`,
		n.ID, n.EventID, n.ClientID, n.Reference, n.Kind, n.Message)
	return err
}
