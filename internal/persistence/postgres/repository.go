// Package postgres provides Postgres-backed persistence for profiles, activities,
// achievements, and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ecostep/internal/domain"
	"example.com/ecostep/internal/events"
	"example.com/ecostep/internal/observability"
)

// Repository implements domain.Repository on top of pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `user_id, total_carbon_saved, level, created_at, updated_at`

// GetProfile returns nil when the profile does not exist.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id=$1`

	row := r.pool.QueryRow(ctx, query, userID)
	var profile domain.Profile
	if err := row.Scan(&profile.UserID, &profile.TotalCarbonSaved, &profile.Level, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// EnsureProfile creates the profile with zero totals if absent. ON CONFLICT DO
// NOTHING keeps concurrent first-time calls idempotent.
func (r *Repository) EnsureProfile(ctx context.Context, userID string, createdAt time.Time) (*domain.Profile, error) {
	const insert = `INSERT INTO profiles (user_id, total_carbon_saved, level, created_at, updated_at)
        VALUES ($1, 0, 1, $2, $2)
        ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, insert, userID, createdAt); err != nil {
		return nil, err
	}

	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}

// AddCarbonSaved applies the increment and the level recompute in one UPDATE under a
// row lock, so concurrent savings for the same user serialize without lost updates.
// A level change records a profile.level_changed outbox event in the same
// transaction.
func (r *Repository) AddCarbonSaved(ctx context.Context, userID string, amount float64) (*domain.Profile, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var previousLevel int
	err = tx.QueryRow(ctx, `SELECT level FROM profiles WHERE user_id=$1 FOR UPDATE`, userID).Scan(&previousLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrProfileNotFound
		}
		return nil, err
	}

	const update = `UPDATE profiles
        SET total_carbon_saved = total_carbon_saved + $2,
            level = LEAST(10, FLOOR((total_carbon_saved + $2) / 100)::int + 1),
            updated_at = NOW()
        WHERE user_id=$1
        RETURNING ` + profileColumns

	var profile domain.Profile
	err = tx.QueryRow(ctx, update, userID, amount).Scan(&profile.UserID, &profile.TotalCarbonSaved, &profile.Level, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if profile.Level != previousLevel {
		dedupeKey := fmt.Sprintf("%s:level:%d", userID, profile.Level)
		err = insertOutbox(ctx, tx, "profile", userID, "profile.level_changed", userID, dedupeKey, events.LevelChanged{
			UserID:           userID,
			Level:            profile.Level,
			PreviousLevel:    previousLevel,
			TotalCarbonSaved: profile.TotalCarbonSaved,
			OccurredAt:       profile.UpdatedAt,
		})
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	observability.RecordCarbonSaved(amount)
	return &profile, nil
}

const activityColumns = `activity_id, user_id, category, activity_type, quantity, carbon_impact, created_at`

// InsertActivity appends the immutable activity row and records the
// activity.recorded outbox event in the same transaction.
func (r *Repository) InsertActivity(ctx context.Context, activity domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insert = `INSERT INTO activities (activity_id, user_id, category, activity_type, quantity, carbon_impact, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, insert,
		activity.ID,
		activity.UserID,
		string(activity.Category),
		string(activity.ActivityType),
		activity.Quantity,
		activity.CarbonImpact,
		activity.CreatedAt,
	)
	if err != nil {
		return err
	}

	dedupeKey := fmt.Sprintf("%s:activity.recorded", activity.ID)
	err = insertOutbox(ctx, tx, "activity", activity.ID, "activity.recorded", activity.UserID, dedupeKey, events.ActivityRecorded{
		ActivityID:   activity.ID,
		UserID:       activity.UserID,
		Category:     string(activity.Category),
		ActivityType: string(activity.ActivityType),
		Quantity:     activity.Quantity,
		CarbonImpact: activity.CarbonImpact,
		RecordedAt:   activity.CreatedAt,
	})
	if err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityRecorded(string(activity.Category), activity.CreatedAt)
	return nil
}

// CountActivities returns the size of the user's activity log.
func (r *Repository) CountActivities(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities WHERE user_id=$1`, userID).Scan(&count)
	return count, err
}

// CarbonByCategory sums the absolute carbon impact per category.
func (r *Repository) CarbonByCategory(ctx context.Context, userID string) (map[domain.Category]float64, error) {
	const query = `SELECT category, SUM(ABS(carbon_impact))
        FROM activities WHERE user_id=$1 GROUP BY category`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Category]float64)
	for rows.Next() {
		var category string
		var total float64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, err
		}
		out[domain.Category(category)] = total
	}
	return out, rows.Err()
}

// ListRecentActivities returns the newest activities first.
func (r *Repository) ListRecentActivities(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	const query = `SELECT ` + activityColumns + `
        FROM activities WHERE user_id=$1
        ORDER BY created_at DESC, activity_id DESC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Activity, 0, limit)
	for rows.Next() {
		var activity domain.Activity
		var category, activityType string
		if err := rows.Scan(&activity.ID, &activity.UserID, &category, &activityType, &activity.Quantity, &activity.CarbonImpact, &activity.CreatedAt); err != nil {
			return nil, err
		}
		activity.Category = domain.Category(category)
		activity.ActivityType = domain.ActivityType(activityType)
		out = append(out, activity)
	}
	return out, rows.Err()
}

const achievementColumns = `achievement_id, name, description, carbon_required`

// AchievementsWithin returns achievements already earned by the given total.
func (r *Repository) AchievementsWithin(ctx context.Context, total float64) ([]domain.Achievement, error) {
	const query = `SELECT ` + achievementColumns + `
        FROM achievements WHERE carbon_required <= $1
        ORDER BY carbon_required ASC`

	rows, err := r.pool.Query(ctx, query, total)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Achievement, 0)
	for rows.Next() {
		var achievement domain.Achievement
		if err := rows.Scan(&achievement.ID, &achievement.Name, &achievement.Description, &achievement.CarbonRequired); err != nil {
			return nil, err
		}
		out = append(out, achievement)
	}
	return out, rows.Err()
}

// NextAchievementAbove returns the closest achievement still out of reach, or nil.
func (r *Repository) NextAchievementAbove(ctx context.Context, total float64) (*domain.Achievement, error) {
	const query = `SELECT ` + achievementColumns + `
        FROM achievements WHERE carbon_required > $1
        ORDER BY carbon_required ASC
        LIMIT 1`

	row := r.pool.QueryRow(ctx, query, total)
	var achievement domain.Achievement
	if err := row.Scan(&achievement.ID, &achievement.Name, &achievement.Description, &achievement.CarbonRequired); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &achievement, nil
}

// UnlockedAchievementIDs returns the set of achievement ids the user holds.
func (r *Repository) UnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT achievement_id FROM user_achievements WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// CountUnlockedAchievements counts the user's unlock rows.
func (r *Repository) CountUnlockedAchievements(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_achievements WHERE user_id=$1`, userID).Scan(&count)
	return count, err
}

// UnlockAchievement attempts the insert guarded by the (user_id, achievement_id)
// primary key. A unique violation means a concurrent caller already unlocked the
// pair and is reported as a no-op, not an error. The achievement.unlocked outbox
// event rides in the same transaction as the unlock row.
func (r *Repository) UnlockAchievement(ctx context.Context, userID string, achievement domain.Achievement, unlockedAt time.Time) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insert = `INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
        VALUES ($1,$2,$3)`

	_, err = tx.Exec(ctx, insert, userID, achievement.ID, unlockedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = nil
			tx.Rollback(ctx)
			return false, nil
		}
		return false, err
	}

	dedupeKey := fmt.Sprintf("%s:%s:achievement.unlocked", userID, achievement.ID)
	err = insertOutbox(ctx, tx, "user_achievement", achievement.ID, "achievement.unlocked", userID, dedupeKey, events.AchievementUnlocked{
		UserID:         userID,
		AchievementID:  achievement.ID,
		Name:           achievement.Name,
		CarbonRequired: achievement.CarbonRequired,
		UnlockedAt:     unlockedAt,
	})
	if err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	observability.RecordAchievementUnlocked()
	return true, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey, dedupeKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"activity.recorded": {
		Topic:         "carbon_activity_events",
		SchemaSubject: "carbon_activity_events-value",
	},
	"achievement.unlocked": {
		Topic:         "carbon_achievement_events",
		SchemaSubject: "carbon_achievement_events-value",
	},
	"profile.level_changed": {
		Topic:         "carbon_profile_events",
		SchemaSubject: "carbon_profile_events-value",
	},
}
