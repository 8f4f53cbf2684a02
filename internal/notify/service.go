package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/sojourn-travel/sojourn-payments/internal/kafkax"
	"github.com/sojourn-travel/sojourn-payments/internal/payments"
	"github.com/sojourn-travel/sojourn-payments/internal/redisx"
)

type Recorder interface {
	Record(ctx context.Context, n Notification) error
}

// Service turns settlement events into durable client notification records.
// Mail delivery is someone else's job; this stops at the row.
type Service struct {
	Repo        Recorder
	Redis       *redis.Client
	ServiceName string
}

func (s *Service) dedupKey(eventID string) string {
	name := s.ServiceName
	if name == "" {
		name = "notify"
	}
	return fmt.Sprintf(redisx.KeyDedup, name, eventID)
}

// HandleSettlement is installed as the consumer handler for both the settled
// and failed topics.
func (s *Service) HandleSettlement(ctx context.Context, m kafkago.Message) error {
	var env payments.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != payments.EventPaymentSettled && env.EventType != payments.EventPaymentFailed {
		return nil // ignore
	}

	// dedup via Redis keyed by consumer name + event_id
	if s.Redis != nil {
		dkey := s.dedupKey(env.EventID)
		if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	p, err := kafkax.UnwrapPayload[payments.SettlementPayload](env.Payload)
	if err != nil {
		return err
	}

	kind := "payment_settled"
	msg := fmt.Sprintf("Payment %s for package %s settled successfully.", p.Reference, p.ProductPackageID)
	if env.EventType == payments.EventPaymentFailed {
		kind = "payment_failed"
		msg = fmt.Sprintf("Payment %s for package %s failed.", p.Reference, p.ProductPackageID)
		if p.Reason != "" {
			msg = fmt.Sprintf("Payment %s for package %s failed: %s.", p.Reference, p.ProductPackageID, p.Reason)
		}
	}

	return s.Repo.Record(ctx, Notification{
		ID:        uuid.NewString(),
		EventID:   env.EventID,
		ClientID:  p.ClientID,
		Reference: p.Reference,
		Kind:      kind,
		Message:   msg,
	})
}
