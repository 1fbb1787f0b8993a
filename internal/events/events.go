// Package events defines the payloads published through the outbox.
package events

import "time"

// ActivityRecorded is emitted when a new activity is accepted into the log.
type ActivityRecorded struct {
	ActivityID   string    `json:"activity_id"`
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	ActivityType string    `json:"activity_type"`
	Quantity     float64   `json:"quantity"`
	CarbonImpact float64   `json:"carbon_impact"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// AchievementUnlocked is emitted once per (user, achievement) pair, in the same
// transaction that created the unlock row.
type AchievementUnlocked struct {
	UserID         string    `json:"user_id"`
	AchievementID  string    `json:"achievement_id"`
	Name           string    `json:"name"`
	CarbonRequired float64   `json:"carbon_required"`
	UnlockedAt     time.Time `json:"unlocked_at"`
}

// LevelChanged tracks level transitions for downstream notification flows.
type LevelChanged struct {
	UserID           string    `json:"user_id"`
	Level            int       `json:"level"`
	PreviousLevel    int       `json:"previous_level"`
	TotalCarbonSaved float64   `json:"total_carbon_saved"`
	OccurredAt       time.Time `json:"occurred_at"`
}
