// Package reconcile mirrors on-chain exchange order status into the club databases.
package reconcile

import (
	"context" // Cancellation
	"time"    // Sync timestamps

	"clube_beneficios/internal/domain"  // Importing domain models
	"clube_beneficios/internal/metrics" // Prometheus collectors

	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

// StatusReader reads the current status of an order on-chain
type StatusReader interface {
	OrderStatus(ctx context.Context, contract string, orderID uint64) (domain.ExchangeOrderStatus, error)
}

// Result counts what one run did
type Result struct {
	Contracts int `json:"contracts"` // Active contracts visited
	Checked   int `json:"checked"`   // Open orders queried on chain
	Updated   int `json:"updated"`   // Orders whose status changed
	Failed    int `json:"failed"`    // Orders the node could not answer for
}

// Add merges another result into r
func (r *Result) Add(o Result) {
	r.Contracts += o.Contracts
	r.Checked += o.Checked
	r.Updated += o.Updated
	r.Failed += o.Failed
}

// Syncer walks contracts and their open orders, one RPC call per order
type Syncer struct {
	reader  StatusReader     // On-chain order status source
	metrics *metrics.Metrics // Nil disables metrics
	now     func() time.Time // Clock
}

// NewSyncer creates a syncer
func NewSyncer(reader StatusReader, m *metrics.Metrics) *Syncer {
	return &Syncer{reader: reader, metrics: m, now: time.Now}
}

// SyncTenant reconciles every open order of every active contract in one club database.
// A failing order is logged and counted; it never stops the run.
func (s *Syncer) SyncTenant(ctx context.Context, db *gorm.DB) (Result, error) {
	var res Result
	var contracts []domain.ExchangeContract
	if err := db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&contracts).Error; err != nil {
		return res, err
	}
	for _, contract := range contracts {
		res.Contracts++
		var orders []domain.ExchangeOrder
		if err := db.WithContext(ctx).
			Where("contract_id = ? AND status = ?", contract.ID, domain.OrderOpen).
			Order("id").Find(&orders).Error; err != nil {
			return res, err
		}
		for _, order := range orders {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Checked++
			log := logrus.WithFields(logrus.Fields{"contract": contract.Address, "order_id": order.ID, "onchain_id": order.OnchainID})

			status, err := s.reader.OrderStatus(ctx, contract.Address, order.OnchainID)
			if err != nil {
				res.Failed++
				s.metrics.OrderSynced("failed")
				log.WithField("error", err.Error()).Warn("Failed to read order status")
				continue
			}
			if status == order.Status {
				s.metrics.OrderSynced("unchanged")
				continue
			}
			now := s.now()
			// Only overwrite what we read, in case another run already moved it
			upd := db.WithContext(ctx).Model(&domain.ExchangeOrder{}).
				Where("id = ? AND status = ?", order.ID, order.Status).
				Updates(map[string]any{"status": status, "synced_at": now})
			if upd.Error != nil {
				res.Failed++
				s.metrics.OrderSynced("failed")
				log.WithField("error", upd.Error.Error()).Error("Failed to update order status")
				continue
			}
			if upd.RowsAffected > 0 {
				res.Updated++
				s.metrics.OrderSynced("updated")
				log.WithFields(logrus.Fields{"from": order.Status, "to": status}).Info("Order status synced")
			}
		}
	}
	return res, nil
}
