package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	testutil "github.com/charlesng35/introhub/internal/database/testutil"
	"github.com/charlesng35/introhub/internal/models"
)

func TestDatabaseStoreIncrement(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db).WithClock(func() time.Time { return now })

	count, ttl, err := store.Increment(context.Background(), "10.0.0.1|/api/auth/magic-link", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(20 * time.Second)
	count, ttl, err = store.Increment(context.Background(), "10.0.0.1|/api/auth/magic-link", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)

	count, _, err = store.Increment(context.Background(), "10.0.0.2|/api/auth/magic-link", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	now = now.Add(time.Minute)
	count, ttl, err = store.Increment(context.Background(), "10.0.0.1|/api/auth/magic-link", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStoreIncrementAfterConcurrentInsert(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db).WithClock(func() time.Time { return now })

	// Another instance inserted the counter after this one looked it up.
	require.NoError(t, db.Create(&models.RateCounter{Key: "shared", Count: 3, ExpiresAt: now.Add(time.Minute)}).Error)
	hidden := false
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:hide_counter", func(tx *gorm.DB) {
		if !hidden && tx.Statement.Table == "rate_counters" {
			hidden = true
			tx.Statement.AddClause(clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "1 = 0"}}})
		}
	}))

	count, ttl, err := store.Increment(context.Background(), "shared", time.Minute)
	require.NoError(t, err)
	require.True(t, hidden)
	require.Equal(t, 4, count)
	require.Equal(t, time.Minute, ttl)

	var stored models.RateCounter
	require.NoError(t, db.Where(&models.RateCounter{Key: "shared"}).Take(&stored).Error)
	require.EqualValues(t, 4, stored.Count)
}

func TestDatabaseStorePurge(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db).WithClock(func() time.Time { return now })

	_, _, err := store.Increment(context.Background(), "stale", time.Second)
	require.NoError(t, err)
	_, _, err = store.Increment(context.Background(), "fresh", time.Hour)
	require.NoError(t, err)

	removed, err := store.Purge(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var keys []string
	require.NoError(t, db.Model(&models.RateCounter{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"fresh"}, keys)
}

func TestNilDatabaseStore(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	require.Error(t, err)
}
