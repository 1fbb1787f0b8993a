// Package memory provides an in-memory repository for local development and tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/ecostep/internal/domain"
)

// Store keeps all state in process memory behind a single mutex, so every
// repository operation is atomic with respect to concurrent callers.
type Store struct {
	mu           sync.RWMutex
	profiles     map[string]domain.Profile
	activities   map[string][]domain.Activity
	achievements []domain.Achievement
	unlocked     map[string]map[string]domain.UserAchievement
}

// NewStore constructs a Store seeded with the default achievement ladder.
func NewStore() *Store {
	return NewStoreWithAchievements(SeedAchievements())
}

// NewStoreWithAchievements constructs a Store with a caller-supplied ladder.
func NewStoreWithAchievements(achievements []domain.Achievement) *Store {
	ladder := make([]domain.Achievement, len(achievements))
	copy(ladder, achievements)
	sort.Slice(ladder, func(i, j int) bool {
		return ladder[i].CarbonRequired < ladder[j].CarbonRequired
	})
	return &Store{
		profiles:     make(map[string]domain.Profile),
		activities:   make(map[string][]domain.Activity),
		achievements: ladder,
		unlocked:     make(map[string]map[string]domain.UserAchievement),
	}
}

// SeedAchievements returns the reference ladder used by local development.
func SeedAchievements() []domain.Achievement {
	names := []struct {
		name        string
		description string
		required    float64
	}{
		{"First Step", "Record your first carbon saving", 0},
		{"Getting Started", "Save 10 kg of CO2", 10},
		{"Eco Saver", "Save 50 kg of CO2", 50},
		{"Carbon Cutter", "Save 100 kg of CO2", 100},
		{"Green Guardian", "Save 250 kg of CO2", 250},
		{"Climate Champion", "Save 500 kg of CO2", 500},
		{"Planet Protector", "Save 1000 kg of CO2", 1000},
	}
	out := make([]domain.Achievement, 0, len(names))
	for _, entry := range names {
		out = append(out, domain.Achievement{
			ID:             uuid.NewString(),
			Name:           entry.name,
			Description:    entry.description,
			CarbonRequired: entry.required,
		})
	}
	return out
}

// GetProfile implements domain.Repository.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// EnsureProfile implements domain.Repository.
func (s *Store) EnsureProfile(ctx context.Context, userID string, createdAt time.Time) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile, ok := s.profiles[userID]; ok {
		return &profile, nil
	}
	profile := domain.Profile{
		UserID:    userID,
		Level:     1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.profiles[userID] = profile
	return &profile, nil
}

// AddCarbonSaved implements domain.Repository. The read-modify-write happens under
// one mutex hold, so concurrent savings never lose updates.
func (s *Store) AddCarbonSaved(ctx context.Context, userID string, amount float64) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	profile.TotalCarbonSaved += amount
	profile.Level = domain.LevelForTotal(profile.TotalCarbonSaved)
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[userID] = profile
	return &profile, nil
}

// InsertActivity implements domain.Repository.
func (s *Store) InsertActivity(ctx context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activities[activity.UserID] = append(s.activities[activity.UserID], activity)
	return nil
}

// CountActivities implements domain.Repository.
func (s *Store) CountActivities(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.activities[userID]), nil
}

// CarbonByCategory implements domain.Repository.
func (s *Store) CarbonByCategory(ctx context.Context, userID string) (map[domain.Category]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Category]float64)
	for _, activity := range s.activities[userID] {
		out[activity.Category] += math.Abs(activity.CarbonImpact)
	}
	return out, nil
}

// ListRecentActivities implements domain.Repository.
func (s *Store) ListRecentActivities(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.activities[userID]
	ordered := make([]domain.Activity, len(log))
	copy(ordered, log)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// AchievementsWithin implements domain.Repository.
func (s *Store) AchievementsWithin(ctx context.Context, total float64) ([]domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Achievement, 0)
	for _, achievement := range s.achievements {
		if achievement.CarbonRequired <= total {
			out = append(out, achievement)
		}
	}
	return out, nil
}

// NextAchievementAbove implements domain.Repository.
func (s *Store) NextAchievementAbove(ctx context.Context, total float64) (*domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, achievement := range s.achievements {
		if achievement.CarbonRequired > total {
			next := achievement
			return &next, nil
		}
	}
	return nil, nil
}

// UnlockedAchievementIDs implements domain.Repository.
func (s *Store) UnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.unlocked[userID]))
	for id := range s.unlocked[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// CountUnlockedAchievements implements domain.Repository.
func (s *Store) CountUnlockedAchievements(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.unlocked[userID]), nil
}

// UnlockAchievement implements domain.Repository.
func (s *Store) UnlockAchievement(ctx context.Context, userID string, achievement domain.Achievement, unlockedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.unlocked[userID]
	if !ok {
		held = make(map[string]domain.UserAchievement)
		s.unlocked[userID] = held
	}
	if _, exists := held[achievement.ID]; exists {
		return false, nil
	}
	held[achievement.ID] = domain.UserAchievement{
		UserID:        userID,
		AchievementID: achievement.ID,
		UnlockedAt:    unlockedAt,
	}
	return true, nil
}
