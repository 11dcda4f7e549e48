package models

import (
	"time"
)

// UserProfile represents a registered user and their subscription state.
// DownloadsToday is maintained by the usage ledger and resets daily.
type UserProfile struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	SubscriptionTier PlanKey   `json:"subscription_tier" db:"subscription_tier"`
	DownloadsToday   int       `json:"downloads_today" db:"downloads_today"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Favorite marks a quote as favorited by a user. Existence of the pair
// is the flag; there is no boolean column.
type Favorite struct {
	UserID    string    `json:"user_id" db:"user_id"`
	QuoteID   int64     `json:"quote_id" db:"quote_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
