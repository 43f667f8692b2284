package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/redis/go-redis/v9"
)

const streamPrefix = "recommendations."

// Publisher implementa ports.Notifier publicando cada ciclo en Redis Streams:
// una entrada por recomendación en recommendations.<investor_id>.
type Publisher struct {
	client *redis.Client
	maxLen int64
}

// NewPublisher crea un Publisher. maxLen > 0 recorta el stream de forma aproximada.
func NewPublisher(client *redis.Client, maxLen int64) *Publisher {
	return &Publisher{client: client, maxLen: maxLen}
}

// StreamKey devuelve el stream de un investor.
func StreamKey(investorID string) string {
	return streamPrefix + investorID
}

// Notify publica las recomendaciones en orden de ranking. Un ciclo vacío no
// publica nada.
func (p *Publisher) Notify(ctx context.Context, inv domain.Investor, recs []domain.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	key := StreamKey(inv.ID)
	pipe := p.client.Pipeline()
	for i, rec := range recs {
		values, err := message(inv, rec, i+1)
		if err != nil {
			return fmt.Errorf("stream.Notify: %w", err)
		}
		args := &redis.XAddArgs{Stream: key, Values: values}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stream.Notify: publish to %s: %w", key, err)
	}
	return nil
}

// message construye los campos de una entrada del stream.
func message(inv domain.Investor, rec domain.Recommendation, rank int) (map[string]any, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal recommendation %s: %w", rec.OpportunityID, err)
	}
	return map[string]any{
		"investor_id":    inv.ID,
		"opportunity_id": rec.OpportunityID,
		"rank":           rank,
		"recovery":       inv.IsRecoveryActive,
		"generated_at":   rec.GeneratedAt.UTC().Format(time.RFC3339Nano),
		"recommendation": string(body),
	}, nil
}
