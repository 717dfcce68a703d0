// Package events defines the messages exchanged over the broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys
const (
	RKPurchaseCompleted = "purchase.completed"
)

// PurchaseCompleted asks the cashback worker to distribute a purchase's cashback
type PurchaseCompleted struct {
	EventID    string    `json:"event_id"`
	ClubID     uint      `json:"club_id"`
	PurchaseID uint      `json:"purchase_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate rejects payloads the worker cannot act on
func (e PurchaseCompleted) Validate() error {
	if e.ClubID == 0 || e.PurchaseID == 0 {
		return fmt.Errorf("event %s: club_id and purchase_id are required", e.EventID)
	}
	return nil
}

// Publisher sends an event under a routing key
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Decode unmarshals a payload into T
func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
