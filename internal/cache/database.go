package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/introhub/internal/models"
)

// DatabaseStore keeps rate limiting counters in the primary SQL database so
// several API instances share one budget per client.
type DatabaseStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewDatabaseStore constructs a database-backed store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, clock: time.Now}
}

// WithClock overrides the clock used for window boundaries.
func (s *DatabaseStore) WithClock(clock func() time.Time) *DatabaseStore {
	if s != nil && clock != nil {
		s.clock = clock
	}
	return s
}

// Increment bumps the counter for key and returns the new count together with
// the time left in the current window. An expired window restarts at one.
func (s *DatabaseStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if s == nil {
		return 0, 0, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock().UTC()
	entry, err := s.increment(ctx, key, now, window)
	// Two first hits for a key race on the insert. The loser retries and
	// finds the winner's row.
	if isDuplicateKey(err) {
		entry, err = s.increment(ctx, key, now, window)
	}
	if err != nil {
		return 0, 0, err
	}

	return int(entry.Count), entry.ExpiresAt.Sub(now), nil
}

func (s *DatabaseStore) increment(ctx context.Context, key string, now time.Time, window time.Duration) (models.RateCounter, error) {
	var entry models.RateCounter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.RateCounter{Key: key}).
			Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.RateCounter{Key: key, Count: 1, ExpiresAt: now.Add(window)}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		if !now.Before(entry.ExpiresAt) {
			entry.Count = 1
			entry.ExpiresAt = now.Add(window)
		} else {
			entry.Count++
		}
		return tx.Save(&entry).Error
	})
	return entry, err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// Purge removes counters whose window closed before now.
func (s *DatabaseStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("cache: database store not initialised")
	}
	return PurgeExpired(ctx, s.db, now)
}

// PurgeExpired removes counters whose window closed before now.
func PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RateCounter{})
	return result.RowsAffected, result.Error
}
