package models

import "time"

// Tier is the access level granted to an account
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
)

// Account is owned by the account subsystem; the core only reads it and downgrades its tier
type Account struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Tier      Tier      `gorm:"type:varchar(16);not null;default:'FREE'" json:"tier"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Account) TableName() string {
	return "accounts"
}

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is a paid premium period for an account
type Subscription struct {
	ID        uint               `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID string             `gorm:"type:varchar(64);not null;index" json:"account_id"`
	Plan      string             `gorm:"type:varchar(32)" json:"plan"`
	Status    SubscriptionStatus `gorm:"type:varchar(16);not null;default:'active';index:idx_sub_status_end,priority:1" json:"status"`
	StartDate time.Time          `gorm:"not null" json:"start_date"`
	EndDate   time.Time          `gorm:"not null;index:idx_sub_status_end,priority:2" json:"end_date"`
	CreatedAt time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Subscription) TableName() string {
	return "subscriptions"
}

// EntitlementStatus is the caller-facing access level
type EntitlementStatus string

const (
	EntitlementFree    EntitlementStatus = "FREE"
	EntitlementPremium EntitlementStatus = "PREMIUM"
	EntitlementExpired EntitlementStatus = "EXPIRED"
)

// Entitlement is an account's tier and, for premium, when it ends
type Entitlement struct {
	AccountID string            `json:"account_id"`
	Status    EntitlementStatus `json:"status"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// IsPremiumAt reports whether the entitlement grants premium access at now.
// Expiry is checked here, independently of the hourly reconciliation.
func (e Entitlement) IsPremiumAt(now time.Time) bool {
	if e.Status != EntitlementPremium {
		return false
	}
	if e.ExpiresAt == nil {
		return false
	}
	return now.Before(*e.ExpiresAt)
}
