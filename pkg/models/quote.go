package models

import "time"

// Quote status values
const (
	QuoteStatusPending  = "pending"
	QuoteStatusApproved = "approved"
	QuoteStatusRejected = "rejected"
)

// Quote represents a single anime quote in the canonical store
type Quote struct {
	ID                int64     `json:"id" db:"id"`
	QuoteText         string    `json:"quote_text" db:"quote_text"`
	CharacterName     string    `json:"character_name" db:"character_name"`
	AnimeTitle        string    `json:"anime_title" db:"anime_title"`
	EpisodeNumber     *int      `json:"episode_number,omitempty" db:"episode_number"`
	Emotion           *string   `json:"emotion,omitempty" db:"emotion"`
	EmotionConfidence *float64  `json:"emotion_confidence,omitempty" db:"emotion_confidence"`
	EmotionModel      *string   `json:"emotion_model,omitempty" db:"emotion_model"`
	ViewCount         int64     `json:"view_count" db:"view_count"`
	DownloadCount     int64     `json:"download_count" db:"download_count"`
	Status            string    `json:"status" db:"status"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// StagingQuote represents a pre-merge row produced by ingestion
type StagingQuote struct {
	QuoteText string `json:"quote_text" db:"quote_text"`
	Character string `json:"character" db:"character"`
	Anime     string `json:"anime" db:"anime"`
	Source    string `json:"source" db:"source"`
	SourceID  string `json:"source_id" db:"source_id"`
	SourceURL string `json:"source_url" db:"source_url"`
}

// DedupKey is the composite uniqueness key used for in-batch deduplication.
// The same triple is enforced by a unique index on the staging table.
func (s StagingQuote) DedupKey() string {
	return s.QuoteText + "::" + s.Character + "::" + s.Anime
}
