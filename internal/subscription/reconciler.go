package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler expires lapsed subscriptions and downgrades the accounts left without one
type Reconciler struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.Logger
}

// NewReconciler creates a new expiry reconciler
func NewReconciler(db *gorm.DB, clk clock.Clock, log *zap.Logger) *Reconciler {
	if clk == nil {
		clk = clock.New()
	}
	return &Reconciler{db: db, clock: clk, log: log.Named("subscription")}
}

// ReconcileResult holds the outcome of one expiry pass
type ReconcileResult struct {
	Expired    int      `json:"expired"`
	Downgraded int      `json:"downgraded"`
	Errors     []string `json:"errors,omitempty"`
}

// ExpireDue marks every active subscription whose end date has passed as expired.
// Each subscription is handled in its own transaction; running it twice changes nothing.
func (r *Reconciler) ExpireDue(ctx context.Context) (*ReconcileResult, error) {
	now := r.clock.Now().UTC()

	var due []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", models.SubscriptionStatusActive, now).
		Order("id").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find due subscriptions: %w", err)
	}

	result := &ReconcileResult{}
	for _, sub := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		downgraded, err := r.expireOne(ctx, sub, now)
		if err != nil {
			r.log.Error("Failed to expire subscription",
				zap.Uint("subscription_id", sub.ID),
				zap.String("account_id", sub.AccountID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("subscription %d: %v", sub.ID, err))
			continue
		}
		result.Expired++
		if downgraded {
			result.Downgraded++
		}
	}

	if result.Expired > 0 || len(result.Errors) > 0 {
		r.log.Info("Subscription expiry pass finished",
			zap.Int("expired", result.Expired),
			zap.Int("downgraded", result.Downgraded),
			zap.Int("errors", len(result.Errors)),
		)
	}
	return result, nil
}

func (r *Reconciler) expireOne(ctx context.Context, sub models.Subscription, now time.Time) (bool, error) {
	downgraded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// guarded on status so a concurrent pass cannot expire the same row twice
		res := tx.Model(&models.Subscription{}).
			Where("id = ? AND status = ?", sub.ID, models.SubscriptionStatusActive).
			Update("status", models.SubscriptionStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var remaining int64
		if err := tx.Model(&models.Subscription{}).
			Where("account_id = ? AND status = ? AND end_date > ?", sub.AccountID, models.SubscriptionStatusActive, now).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		res = tx.Model(&models.Account{}).
			Where("id = ? AND tier <> ?", sub.AccountID, models.TierFree).
			Update("tier", models.TierFree)
		if res.Error != nil {
			return res.Error
		}
		downgraded = res.RowsAffected > 0
		return nil
	})
	return downgraded, err
}

// EntitlementSource resolves an account's current entitlement
type EntitlementSource interface {
	GetEntitlement(ctx context.Context, accountID string) (models.Entitlement, error)
}

// GormEntitlementSource reads entitlements straight from the subscription tables on every call
type GormEntitlementSource struct {
	db *gorm.DB
}

func NewGormEntitlementSource(db *gorm.DB) *GormEntitlementSource {
	return &GormEntitlementSource{db: db}
}

// GetEntitlement reports PREMIUM while an active subscription exists, EXPIRED when the
// account only has lapsed ones, and FREE otherwise. Unknown accounts are FREE.
// The expiry date is returned as stored; callers compare it with their own clock.
func (s *GormEntitlementSource) GetEntitlement(ctx context.Context, accountID string) (models.Entitlement, error) {
	ent := models.Entitlement{AccountID: accountID, Status: models.EntitlementFree}
	if accountID == "" {
		return ent, nil
	}

	var active models.Subscription
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, models.SubscriptionStatusActive).
		Order("end_date DESC").
		First(&active).Error
	if err == nil {
		end := active.EndDate
		ent.Status = models.EntitlementPremium
		ent.ExpiresAt = &end
		return ent, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ent, fmt.Errorf("failed to look up subscription for %s: %w", accountID, err)
	}

	var lapsed models.Subscription
	err = s.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, models.SubscriptionStatusExpired).
		Order("end_date DESC").
		First(&lapsed).Error
	if err == nil {
		end := lapsed.EndDate
		ent.Status = models.EntitlementExpired
		ent.ExpiresAt = &end
		return ent, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ent, fmt.Errorf("failed to look up subscription for %s: %w", accountID, err)
	}
	return ent, nil
}
