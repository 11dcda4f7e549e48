package models

import (
	"time"
)

// StatsEvent types
const (
	EventTypeView     = "view"
	EventTypeDownload = "download"
)

// StatsEvent is a usage event published to the events queue and folded
// into the aggregate stats row by the worker.
type StatsEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	QuoteID    int64     `json:"quote_id"`
	UserID     string    `json:"user_id,omitempty"`
	Background string    `json:"background,omitempty"`
	Font       string    `json:"font,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AppStats is the aggregate stats row shown on the landing page
type AppStats struct {
	TotalQuotes    int64     `json:"total_quotes" db:"total_quotes"`
	TotalViews     int64     `json:"total_views" db:"total_views"`
	TotalDownloads int64     `json:"total_downloads" db:"total_downloads"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
