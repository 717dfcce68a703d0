package reconcile

import (
	"context" // Cancellation
	"errors"  // Joined club errors
	"fmt"     // Error wrapping
	"time"    // Pending age threshold

	"clube_beneficios/internal/domain" // Importing domain models
	"clube_beneficios/internal/events" // Broker messages

	"github.com/google/uuid"     // Event ids
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

const republishBatch = 500 // Purchases re-sent per club per run

// Clubs lists the active clubs and opens their databases
type Clubs interface {
	ActiveClubs(ctx context.Context) ([]domain.Club, error)
	ByID(ctx context.Context, clubID uint) (*domain.Club, *gorm.DB, error)
}

// CashbackResult counts what one republish run did
type CashbackResult struct {
	Clubs       int `json:"clubs"`       // Clubs swept
	Pending     int `json:"pending"`     // Stale pending purchases found
	Republished int `json:"republished"` // Events handed to the publisher
	Failed      int `json:"failed"`      // Publish failures
}

// Republisher re-sends the purchase event of completed purchases whose cashback is still
// pending after a grace period, e.g. because the broker was down when they were made.
// The worker settles each purchase once, so a duplicate event is harmless.
type Republisher struct {
	pub   events.Publisher // Broker or inline worker
	after time.Duration    // Age at which a pending purchase counts as lost
	now   func() time.Time // Clock
}

// NewRepublisher creates a republisher for purchases pending longer than after
func NewRepublisher(pub events.Publisher, after time.Duration) *Republisher {
	return &Republisher{pub: pub, after: after, now: time.Now}
}

// RepublishTenant re-sends the events of one club's stale pending purchases, oldest first
func (r *Republisher) RepublishTenant(ctx context.Context, clubID uint, db *gorm.DB) (CashbackResult, error) {
	res := CashbackResult{Clubs: 1}
	var purchases []domain.Purchase
	if err := db.WithContext(ctx).
		Select("id", "user_id", "created_at").
		Where("status = ? AND cashback_status = ? AND created_at <= ?", domain.PurchaseCompleted, domain.CashbackPending, r.now().Add(-r.after)).
		Order("id").Limit(republishBatch).
		Find(&purchases).Error; err != nil {
		return res, fmt.Errorf("load pending purchases: %w", err)
	}
	res.Pending = len(purchases)
	for _, p := range purchases {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ev := events.PurchaseCompleted{
			EventID:    uuid.NewString(),
			ClubID:     clubID,
			PurchaseID: p.ID,
			OccurredAt: p.CreatedAt.UTC(),
		}
		log := logrus.WithFields(logrus.Fields{"club_id": clubID, "purchase_id": p.ID, "event_id": ev.EventID})
		if err := r.pub.PublishJSON(ctx, events.RKPurchaseCompleted, ev); err != nil {
			res.Failed++
			log.WithField("error", err.Error()).Warn("Failed to republish purchase event")
			continue
		}
		res.Republished++
		log.Info("Purchase event republished")
	}
	return res, nil
}

// RepublishAll sweeps every active club with the cashback module on.
// A club that cannot be opened is logged and skipped; its error is returned with the others.
func (r *Republisher) RepublishAll(ctx context.Context, clubs Clubs) (CashbackResult, error) {
	var total CashbackResult
	list, err := clubs.ActiveClubs(ctx)
	if err != nil {
		return total, err
	}
	var errs []error
	for i := range list {
		club := &list[i]
		if !club.ModuleEnabled(domain.ModuleCashback) {
			continue
		}
		_, tdb, err := clubs.ByID(ctx, club.ID)
		if err == nil {
			var res CashbackResult
			res, err = r.RepublishTenant(ctx, club.ID, tdb)
			total.Clubs += res.Clubs
			total.Pending += res.Pending
			total.Republished += res.Republished
			total.Failed += res.Failed
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Error("Cashback republish failed")
			errs = append(errs, fmt.Errorf("club %s: %w", club.Slug, err))
		}
	}
	return total, errors.Join(errs...)
}

// Run sweeps on every tick until ctx is cancelled
func (r *Republisher) Run(ctx context.Context, clubs Clubs, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, _ := r.RepublishAll(ctx, clubs)
			if res.Pending > 0 {
				logrus.WithFields(logrus.Fields{
					"pending":     res.Pending,
					"republished": res.Republished,
					"failed":      res.Failed,
				}).Warn("Stale pending cashback republished")
			}
		}
	}
}
