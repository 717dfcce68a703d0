// Package worker consumes the cashback queue.
package worker

import (
	"context"       // Cancellation
	"encoding/json" // Inline payloads
	"errors"        // Error matching
	"fmt"           // Error wrapping

	"clube_beneficios/internal/cashback" // Cashback split
	"clube_beneficios/internal/domain"   // Importing domain models
	"clube_beneficios/internal/events"   // Broker messages
	"clube_beneficios/internal/metrics"  // Prometheus collectors
	"clube_beneficios/internal/service"  // Cashback distribution
	"clube_beneficios/internal/tenant"   // Club lookup errors
	"clube_beneficios/internal/utils"    // Cache invalidation

	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ deliveries
	"github.com/redis/go-redis/v9"        // Redis client
	"github.com/sirupsen/logrus"          // Logging
	"gorm.io/gorm"                        // GORM ORM library
)

// How a message is settled
const (
	OutcomeAck       = "ack"       // Done
	OutcomeDuplicate = "duplicate" // Already settled, acked
	OutcomeRequeue   = "requeue"   // Transient failure, retried
	OutcomeReject    = "reject"    // Unusable, dead-lettered
)

// TenantResolver hands out the database of a club
type TenantResolver interface {
	ByID(ctx context.Context, clubID uint) (*domain.Club, *gorm.DB, error)
}

// CashbackWorker distributes cashback for completed purchases
type CashbackWorker struct {
	tenants TenantResolver   // Club databases
	split   cashback.Split   // Shares of each beneficiary
	metrics *metrics.Metrics // Nil disables metrics
	rdb     *redis.Client    // Nil disables cache invalidation
}

// NewCashbackWorker creates a worker
func NewCashbackWorker(tenants TenantResolver, split cashback.Split, m *metrics.Metrics) *CashbackWorker {
	return &CashbackWorker{tenants: tenants, split: split, metrics: m}
}

// WithCache makes the worker drop the cached invoice pages of the users it credits
func (w *CashbackWorker) WithCache(rdb *redis.Client) *CashbackWorker {
	w.rdb = rdb
	return w
}

// Process handles one message body and says how it should be settled
func (w *CashbackWorker) Process(ctx context.Context, key string, body []byte) (string, error) {
	if key != events.RKPurchaseCompleted {
		return OutcomeAck, nil // Not ours; drop it
	}
	ev, err := events.Decode[events.PurchaseCompleted](body)
	if err != nil {
		return OutcomeReject, err
	}
	if err := ev.Validate(); err != nil {
		return OutcomeReject, err
	}
	log := logrus.WithFields(logrus.Fields{"club_id": ev.ClubID, "purchase_id": ev.PurchaseID, "event_id": ev.EventID})

	_, db, err := w.tenants.ByID(ctx, ev.ClubID)
	if errors.Is(err, tenant.ErrClubNotFound) {
		return OutcomeReject, err
	}
	if err != nil {
		return OutcomeRequeue, err
	}

	rows, err := service.DistributeCashback(ctx, db, w.split, ev.PurchaseID)
	switch {
	case errors.Is(err, service.ErrAlreadyDistributed):
		log.Info("Cashback already settled, skipping")
		return OutcomeDuplicate, nil
	case errors.Is(err, service.ErrPurchaseNotFound):
		return OutcomeReject, err
	case err != nil:
		return OutcomeRequeue, err
	}

	for _, r := range rows {
		amount, _ := r.Amount.Float64()
		w.metrics.CashbackDistributed(amount)
	}
	w.invalidateInvoices(ctx, db, ev, log)
	log.WithField("shares", len(rows)).Info("Cashback distributed")
	return OutcomeAck, nil
}

// invalidateInvoices drops the buyer's cached invoice pages, which still show the purchase as pending
func (w *CashbackWorker) invalidateInvoices(ctx context.Context, db *gorm.DB, ev events.PurchaseCompleted, log *logrus.Entry) {
	if w.rdb == nil {
		return
	}
	var purchase domain.Purchase
	if err := db.WithContext(ctx).Select("id", "user_id").First(&purchase, ev.PurchaseID).Error; err != nil {
		log.WithField("error", err.Error()).Warn("Failed to load purchase for cache invalidation")
		return
	}
	if err := utils.DeleteCachePrefix(ctx, w.rdb, utils.PurchasesCachePrefix(ev.ClubID, purchase.UserID)); err != nil {
		log.WithField("error", err.Error()).Warn("Cache invalidation failed")
	}
}

// Run consumes deliveries one at a time until ctx is done or the channel closes
func (w *CashbackWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handleDelivery(ctx, d)
		}
	}
}

func (w *CashbackWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	outcome, err := w.Process(ctx, d.RoutingKey, d.Body)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"routing_key": d.RoutingKey,
			"message_id":  d.MessageId,
			"outcome":     outcome,
			"error":       err.Error(),
		}).Error("Cashback message failed")
	}
	var ackErr error
	switch outcome {
	case OutcomeRequeue:
		ackErr = d.Nack(false, true)
	case OutcomeReject:
		ackErr = d.Nack(false, false) // Dead-lettered when the queue has a DLX
	default:
		ackErr = d.Ack(false)
	}
	if ackErr != nil {
		logrus.WithField("error", ackErr.Error()).Warn("Failed to settle delivery")
	}
	w.metrics.CashbackMessage(outcome)
}

// InlinePublisher runs the worker in-process; used when no broker is configured
type InlinePublisher struct {
	Worker *CashbackWorker
}

// PublishJSON hands the event straight to the worker
func (p InlinePublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	outcome, err := p.Worker.Process(ctx, key, b)
	p.Worker.metrics.CashbackMessage(outcome)
	if err != nil {
		return fmt.Errorf("inline %s (%s): %w", key, outcome, err)
	}
	return nil
}
