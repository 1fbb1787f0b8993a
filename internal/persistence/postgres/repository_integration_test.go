//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/ecostep/internal/domain"
)

func startDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("ecostep"),
		postgrescontainer.WithUsername("ecostep"),
		postgrescontainer.WithPassword("ecostep"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestRepositoryAccountingLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	userID := uuid.NewString()

	// Concurrent first-time calls must converge on one zero-value profile.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.EnsureProfile(ctx, userID, time.Now().UTC())
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	profile, err := repo.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Zero(t, profile.TotalCarbonSaved)
	require.Equal(t, 1, profile.Level)

	// Concurrent increments must not lose updates.
	const workers = 10
	const amount = 12.5
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddCarbonSaved(ctx, userID, amount)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	profile, err = repo.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.InDelta(t, workers*amount, profile.TotalCarbonSaved, 1e-9)
	require.Equal(t, 2, profile.Level, "125 kg lands in level 2")

	// Level crossing leaves an outbox record.
	var levelEvents int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type='profile.level_changed' AND aggregate_id=$1`,
		userID).Scan(&levelEvents)
	require.NoError(t, err)
	require.Equal(t, 1, levelEvents)
}

func TestRepositoryAddCarbonSavedMissingProfile(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	_, err := repo.AddCarbonSaved(ctx, uuid.NewString(), 5)
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestRepositoryUnlockAchievementIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	userID := uuid.NewString()
	_, err := repo.EnsureProfile(ctx, userID, time.Now().UTC())
	require.NoError(t, err)

	achievement := domain.Achievement{ID: "first-step", Name: "First Step", CarbonRequired: 0}

	inserted, err := repo.UnlockAchievement(ctx, userID, achievement, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.UnlockAchievement(ctx, userID, achievement, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, inserted, "duplicate unlock is a no-op")

	count, err := repo.CountUnlockedAchievements(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var unlockEvents int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type='achievement.unlocked' AND partition_key=$1`,
		userID).Scan(&unlockEvents)
	require.NoError(t, err)
	require.Equal(t, 1, unlockEvents, "only the winning insert emits an event")
}

func TestRepositoryActivityLogAndAggregates(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	userID := uuid.NewString()
	_, err := repo.EnsureProfile(ctx, userID, time.Now().UTC())
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	activities := []domain.Activity{
		{ID: uuid.NewString(), UserID: userID, Category: domain.CategoryTransport, ActivityType: domain.TransportBike, Quantity: 10, CarbonImpact: -1.2, CreatedAt: base},
		{ID: uuid.NewString(), UserID: userID, Category: domain.CategoryTransport, ActivityType: domain.TransportCar, Quantity: 10, CarbonImpact: 1.2, CreatedAt: base.Add(time.Minute)},
		{ID: uuid.NewString(), UserID: userID, Category: domain.CategoryDiet, ActivityType: domain.DietVegan, Quantity: 2, CarbonImpact: -5, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, activity := range activities {
		require.NoError(t, repo.InsertActivity(ctx, activity))
	}

	count, err := repo.CountActivities(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	byCategory, err := repo.CarbonByCategory(ctx, userID)
	require.NoError(t, err)
	require.InDelta(t, 2.4, byCategory[domain.CategoryTransport], 1e-9)
	require.InDelta(t, 5, byCategory[domain.CategoryDiet], 1e-9)

	recent, err := repo.ListRecentActivities(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, activities[2].ID, recent[0].ID)
	require.Equal(t, activities[1].ID, recent[1].ID)

	var recordedEvents int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type='activity.recorded' AND partition_key=$1`,
		userID).Scan(&recordedEvents)
	require.NoError(t, err)
	require.Equal(t, 3, recordedEvents)
}

func TestRepositoryAchievementLadder(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	within, err := repo.AchievementsWithin(ctx, 50)
	require.NoError(t, err)
	require.Len(t, within, 3, "first-step, getting-started, eco-saver at 50 kg")

	next, err := repo.NextAchievementAbove(ctx, 50)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, "carbon-cutter", next.ID)

	next, err = repo.NextAchievementAbove(ctx, 1000)
	require.NoError(t, err)
	require.Nil(t, next)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
		"../../../db/postgres/migrations/0002_seed_achievements.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
