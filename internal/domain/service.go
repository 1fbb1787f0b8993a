// Package domain implements the carbon accounting and achievement engine.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecentActivityLimit is the size of the dashboard's recent-activity window.
const RecentActivityLimit = 5

// Repository captures the persistence operations the engine needs. Implementations
// must make EnsureProfile and UnlockAchievement safe under concurrent callers, and
// AddCarbonSaved must apply the increment atomically (no read-modify-write).
type Repository interface {
	// GetProfile returns nil without error when the profile does not exist.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// EnsureProfile creates the profile with zero totals if absent and returns the
	// current row either way.
	EnsureProfile(ctx context.Context, userID string, createdAt time.Time) (*Profile, error)
	// AddCarbonSaved atomically adds amount to the accumulator, recomputes the level
	// in the same update, and returns the resulting profile.
	AddCarbonSaved(ctx context.Context, userID string, amount float64) (*Profile, error)

	InsertActivity(ctx context.Context, activity Activity) error
	CountActivities(ctx context.Context, userID string) (int, error)
	CarbonByCategory(ctx context.Context, userID string) (map[Category]float64, error)
	ListRecentActivities(ctx context.Context, userID string, limit int) ([]Activity, error)

	// AchievementsWithin returns achievements with carbon_required <= total.
	AchievementsWithin(ctx context.Context, total float64) ([]Achievement, error)
	// NextAchievementAbove returns the achievement with the smallest carbon_required
	// strictly greater than total, or nil when none remain.
	NextAchievementAbove(ctx context.Context, total float64) (*Achievement, error)

	UnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	CountUnlockedAchievements(ctx context.Context, userID string) (int, error)
	// UnlockAchievement inserts the (user, achievement) pair if absent. It returns
	// false without error when the pair already exists.
	UnlockAchievement(ctx context.Context, userID string, achievement Achievement, unlockedAt time.Time) (bool, error)
}

// Service orchestrates the record -> accumulate -> unlock pipeline and the summary read.
type Service struct {
	repo   Repository
	logger *log.Logger
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used for non-fatal unlock failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.New(log.Writer(), "[carbon] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordActivityInput captures the payload from the API layer. CarbonImpact may be
// nil, in which case the factor table supplies the reported impact.
type RecordActivityInput struct {
	UserID       string
	Category     Category
	ActivityType ActivityType
	Quantity     float64
	CarbonImpact *float64
}

// RecordResult is the outcome of a successful record call. Profile and Unlocked are
// only populated when the activity saved carbon and the accounting chain ran.
type RecordResult struct {
	Activity Activity
	Profile  *Profile
	Unlocked []Achievement
}

// RecordActivity validates and persists an activity, then feeds the accumulator and
// the unlock engine when the activity saved carbon. A storage failure after the
// activity insert leaves the activity durable; the returned result still carries it
// alongside the error.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (*RecordResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	if !KnownActivityType(input.Category, input.ActivityType) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownType, input.Category, input.ActivityType)
	}

	var impact float64
	if input.CarbonImpact != nil {
		impact = *input.CarbonImpact
	} else {
		computed, err := ReportedImpact(input.Category, input.ActivityType, input.Quantity)
		if err != nil {
			return nil, err
		}
		impact = computed
	}

	now := time.Now().UTC()
	if _, err := s.repo.EnsureProfile(ctx, input.UserID, now); err != nil {
		return nil, fmt.Errorf("%w: ensure profile: %v", ErrStorageFailure, err)
	}

	activity := Activity{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		Category:     input.Category,
		ActivityType: input.ActivityType,
		Quantity:     input.Quantity,
		CarbonImpact: impact,
		CreatedAt:    now,
	}
	if err := s.repo.InsertActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("%w: insert activity: %v", ErrStorageFailure, err)
	}

	result := &RecordResult{Activity: activity}
	if impact >= 0 {
		return result, nil
	}

	profile, err := s.ApplySaving(ctx, input.UserID, -impact)
	if err != nil {
		// The activity row is already durable; the saving is reconciled later rather
		// than the insert being rolled back.
		return result, err
	}
	result.Profile = profile

	unlocked, err := s.CheckAndUnlock(ctx, input.UserID, profile.TotalCarbonSaved)
	if err != nil {
		s.logger.Printf("achievement unlock check failed (user=%s): %v", input.UserID, err)
	}
	result.Unlocked = unlocked
	return result, nil
}

// ApplySaving adds a positive amount of saved carbon to the user's accumulator and
// recomputes the level.
func (s *Service) ApplySaving(ctx context.Context, userID string, amount float64) (*Profile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: saving amount must be > 0", ErrInvalidInput)
	}
	profile, err := s.repo.AddCarbonSaved(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: apply saving: %v", ErrStorageFailure, err)
	}
	return profile, nil
}

// CheckAndUnlock unlocks every achievement the total now qualifies for that the user
// does not hold yet. Pairs inserted by a concurrent caller are skipped silently; the
// returned slice contains only achievements this call created. Repeated calls with
// an unchanged total return an empty slice.
func (s *Service) CheckAndUnlock(ctx context.Context, userID string, currentTotal float64) ([]Achievement, error) {
	qualifying, err := s.repo.AchievementsWithin(ctx, currentTotal)
	if err != nil {
		return nil, fmt.Errorf("%w: list achievements: %v", ErrStorageFailure, err)
	}
	held, err := s.repo.UnlockedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list unlocked: %v", ErrStorageFailure, err)
	}

	now := time.Now().UTC()
	newly := make([]Achievement, 0)
	for _, achievement := range qualifying {
		if _, ok := held[achievement.ID]; ok {
			continue
		}
		inserted, err := s.repo.UnlockAchievement(ctx, userID, achievement, now)
		if err != nil {
			return newly, fmt.Errorf("%w: unlock %s: %v", ErrStorageFailure, achievement.ID, err)
		}
		if inserted {
			newly = append(newly, achievement)
		}
	}
	return newly, nil
}

// BuildSummary assembles the dashboard view model. Users without a profile or
// activities get well-defined zero values.
func (s *Service) BuildSummary(ctx context.Context, userID string) (*Summary, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %v", ErrStorageFailure, err)
	}
	if profile == nil {
		profile = &Profile{UserID: userID, Level: 1}
	}

	total, err := s.repo.CountActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: count activities: %v", ErrStorageFailure, err)
	}
	byCategory, err := s.repo.CarbonByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: carbon by category: %v", ErrStorageFailure, err)
	}
	if byCategory == nil {
		byCategory = make(map[Category]float64)
	}
	recent, err := s.repo.ListRecentActivities(ctx, userID, RecentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent activities: %v", ErrStorageFailure, err)
	}
	if recent == nil {
		recent = make([]Activity, 0)
	}
	unlockedCount, err := s.repo.CountUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: count unlocked: %v", ErrStorageFailure, err)
	}
	next, err := s.repo.NextAchievementAbove(ctx, profile.TotalCarbonSaved)
	if err != nil {
		return nil, fmt.Errorf("%w: next achievement: %v", ErrStorageFailure, err)
	}

	return &Summary{
		Profile: *profile,
		Stats: SummaryStats{
			TotalActivities:  total,
			CarbonByCategory: byCategory,
			RecentActivities: recent,
		},
		AchievementsCount: unlockedCount,
		NextAchievement:   next,
	}, nil
}
