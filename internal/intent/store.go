package intent

import (
	"context"
	"errors"
	"time"

	"membership_backend/internal/common"

	"gorm.io/gorm"
)

// Store is a keyed, expiring record store. It is the only reliable hand-off
// channel across an external redirect boundary: cookies layered on top are a
// latency optimization, not the source of truth, because browsers may drop
// them across cross-site redirects.
type Store interface {
	// Create persists a record under the given key with the given lifetime.
	Create(ctx context.Context, key, value, purpose string, ttl time.Duration) error
	// Lookup returns the stored value for a non-expired record, or
	// common.ErrNotFound.
	Lookup(ctx context.Context, key, purpose string) (string, error)
	// Consume deletes all records matching the key. Deleting zero rows is not
	// an error; concurrent consumers make that a normal outcome.
	Consume(ctx context.Context, key, purpose string) error
	// FindMostRecentUnexpired returns the newest non-expired record whose key
	// starts with prefix. Best-effort only: with concurrent sign-in attempts
	// from different browsers it can return a record belonging to another
	// attempt, so callers must treat the result as lower-confidence than a
	// direct key match.
	FindMostRecentUnexpired(ctx context.Context, prefix, purpose string) (key, value string, err error)
	// DeleteExpired removes expired rows and reports how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGORMStore creates a GORM-backed ephemeral token store.
func NewGORMStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, key, value, purpose string, ttl time.Duration) error {
	record := &EphemeralToken{
		Identifier: key,
		Token:      value,
		Purpose:    purpose,
		ExpiresAt:  time.Now().Add(ttl),
	}
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *gormStore) Lookup(ctx context.Context, key, purpose string) (string, error) {
	var record EphemeralToken
	err := s.db.WithContext(ctx).
		Where("identifier = ? AND purpose = ? AND expires_at >= ?", key, purpose, time.Now()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", common.ErrNotFound.WithDetails("No unexpired record for this key.")
		}
		return "", err
	}
	return record.Token, nil
}

func (s *gormStore) Consume(ctx context.Context, key, purpose string) error {
	return s.db.WithContext(ctx).
		Where("identifier = ? AND purpose = ?", key, purpose).
		Delete(&EphemeralToken{}).Error
}

func (s *gormStore) FindMostRecentUnexpired(ctx context.Context, prefix, purpose string) (string, string, error) {
	var record EphemeralToken
	err := s.db.WithContext(ctx).
		Where("identifier LIKE ? AND purpose = ? AND expires_at >= ?", prefix+"%", purpose, time.Now()).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", common.ErrNotFound.WithDetails("No unexpired record with this prefix.")
		}
		return "", "", err
	}
	return record.Identifier, record.Token, nil
}

func (s *gormStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&EphemeralToken{})
	return result.RowsAffected, result.Error
}
