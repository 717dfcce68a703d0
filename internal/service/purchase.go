// Package service holds the transactional business operations shared by the API and the worker.
package service

import (
	"context"
	"errors"
	"fmt"

	"clube_beneficios/internal/cashback"
	"clube_beneficios/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrSelfPurchase       = errors.New("merchants cannot buy their own products")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrAlreadyDistributed = errors.New("cashback already distributed")
	ErrNotCancellable     = errors.New("purchase can no longer be cancelled")
)

// CreatePurchase decrements stock and records the purchase in one transaction
func CreatePurchase(ctx context.Context, db *gorm.DB, userID, productID uint, qty int, cashbackEnabled bool) (*domain.Purchase, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	var purchase domain.Purchase
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		if err := tx.Where("id = ? AND active = ?", productID, true).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if product.MerchantID == userID {
			return ErrSelfPurchase
		}
		// Guarded decrement: the row is only touched while enough stock remains
		res := tx.Model(&domain.Product{}).
			Where("id = ? AND stock >= ?", product.ID, qty).
			Update("stock", gorm.Expr("stock - ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientStock
		}

		total := product.Price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		cashbackTotal := decimal.Zero
		if cashbackEnabled {
			cashbackTotal = cashback.For(total, product.CashbackPct)
		}
		status := domain.CashbackPending
		if !cashbackTotal.IsPositive() {
			status = domain.CashbackSkipped
		}
		purchase = domain.Purchase{
			UserID:         userID,
			ProductID:      product.ID,
			MerchantID:     product.MerchantID,
			Quantity:       qty,
			UnitPrice:      product.Price,
			Total:          total,
			CashbackTotal:  cashbackTotal,
			Status:         domain.PurchaseCompleted,
			CashbackStatus: status,
		}
		return tx.Create(&purchase).Error
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// CancelPurchase restores stock for a purchase whose cashback has not been paid out
func CancelPurchase(ctx context.Context, db *gorm.DB, purchaseID uint) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&purchase, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if purchase.Status != domain.PurchaseCompleted || purchase.CashbackStatus == domain.CashbackDistributed {
			return ErrNotCancellable
		}
		if err := tx.Model(&domain.Product{}).Where("id = ?", purchase.ProductID).
			Update("stock", gorm.Expr("stock + ?", purchase.Quantity)).Error; err != nil {
			return err
		}
		// Conditional update so a concurrent distribution cannot slip in between
		res := tx.Model(&domain.Purchase{}).
			Where("id = ? AND status = ? AND cashback_status <> ?", purchase.ID, domain.PurchaseCompleted, domain.CashbackDistributed).
			Updates(map[string]any{"status": domain.PurchaseCancelled, "cashback_status": domain.CashbackSkipped})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotCancellable
		}
		purchase.Status = domain.PurchaseCancelled
		purchase.CashbackStatus = domain.CashbackSkipped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// DistributeCashback pays the cashback of a purchase exactly once
func DistributeCashback(ctx context.Context, db *gorm.DB, split cashback.Split, purchaseID uint) ([]domain.CashbackDistribution, error) {
	var rows []domain.CashbackDistribution
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchase domain.Purchase
		if err := tx.First(&purchase, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if purchase.CashbackStatus != domain.CashbackPending || purchase.Status != domain.PurchaseCompleted {
			return ErrAlreadyDistributed
		}
		// Claim the purchase first; a second worker sees zero rows affected
		claim := tx.Model(&domain.Purchase{}).
			Where("id = ? AND cashback_status = ?", purchase.ID, domain.CashbackPending).
			Update("cashback_status", domain.CashbackDistributed)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return ErrAlreadyDistributed
		}

		referrerID, uplineID, err := referralChain(tx, purchase.UserID)
		if err != nil {
			return err
		}
		for _, share := range split.Distribute(purchase.CashbackTotal, purchase.UserID, referrerID, uplineID) {
			row := domain.CashbackDistribution{
				PurchaseID:  purchase.ID,
				Beneficiary: share.Beneficiary,
				UserID:      share.UserID,
				Amount:      share.Amount,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("record %s share: %w", share.Beneficiary, err)
			}
			if share.UserID != nil {
				if err := tx.Model(&domain.User{}).Where("id = ?", *share.UserID).
					Update("cashback_balance", gorm.Expr("cashback_balance + ?", share.Amount)).Error; err != nil {
					return fmt.Errorf("credit user %d: %w", *share.UserID, err)
				}
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// referralChain returns the referrer of the user and the referrer's own referrer
func referralChain(tx *gorm.DB, userID uint) (*uint, *uint, error) {
	var user domain.User
	if err := tx.Select("id", "referrer_id").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil // Buyer removed; the platform keeps the referral shares
		}
		return nil, nil, err
	}
	if user.ReferrerID == nil {
		return nil, nil, nil
	}
	var referrer domain.User
	if err := tx.Select("id", "referrer_id").First(&referrer, *user.ReferrerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if referrer.ReferrerID == nil {
		return &referrer.ID, nil, nil
	}
	var upline domain.User
	if err := tx.Select("id").First(&upline, *referrer.ReferrerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &referrer.ID, nil, nil // Upline removed; the platform keeps its share
		}
		return nil, nil, err
	}
	return &referrer.ID, &upline.ID, nil
}
