package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"profitloss-backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("session not found")

// Store keeps opaque session payloads until their TTL runs out.
type Store interface {
	Put(ctx context.Context, id string, payload []byte, ttl time.Duration) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// New prefers Redis when a client is configured and falls back to the database.
func New(rdb *redis.Client, db *gorm.DB) Store {
	if rdb != nil {
		return &Redis{Client: rdb}
	}
	return &Gorm{DB: db}
}

const defaultRedisPrefix = "import:session:"

type Redis struct {
	Client *redis.Client
	Prefix string
}

func (r *Redis) key(id string) string {
	if r.Prefix == "" {
		return defaultRedisPrefix + id
	}
	return r.Prefix + id
}

func (r *Redis) Put(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	return r.Client.Set(ctx, r.key(id), payload, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := r.Client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.Client.Del(ctx, r.key(id)).Err()
}

// Gorm stores sessions in the import_sessions table. Expired rows read as missing and are
// removed by PurgeExpired.
type Gorm struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (g *Gorm) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gorm) Put(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	rec := domain.ImportSessionRecord{
		ID:        id,
		Payload:   payload,
		ExpiresAt: g.now().Add(ttl),
	}
	err := g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save import session: %w", err)
	}
	return nil
}

func (g *Gorm) Get(ctx context.Context, id string) ([]byte, error) {
	var rec domain.ImportSessionRecord
	err := g.DB.WithContext(ctx).Where("id = ? AND expires_at > ?", id, g.now()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

func (g *Gorm) Delete(ctx context.Context, id string) error {
	return g.DB.WithContext(ctx).Where("id = ?", id).Delete(&domain.ImportSessionRecord{}).Error
}

// PurgeExpired deletes sessions past their expiry and returns how many were removed.
func (g *Gorm) PurgeExpired(ctx context.Context) (int64, error) {
	res := g.DB.WithContext(ctx).Where("expires_at <= ?", g.now()).Delete(&domain.ImportSessionRecord{})
	return res.RowsAffected, res.Error
}
