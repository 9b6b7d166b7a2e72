package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"nestdrive/internal/domain"
)

// Время жизни кэшированной квоты в сессии.
const sessionQuotaTTL = 30 * time.Minute

// QuotaStore — персистентный слой квот. Реализуется
// repository.QuotaRepository.
type QuotaStore interface {
	GetQuota(ctx context.Context, ownerID string) (*domain.QuotaUsage, error)
	IncrementUsed(ctx context.Context, ownerID string, delta int64) (*domain.QuotaUsage, error)
	UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error
}

// SessionCache хранит квоту пользователя рядом с его сессией, чтобы
// проверка свободного места не ходила в базу на каждую операцию.
type SessionCache interface {
	// Get возвращает кэшированную квоту либо nil при промахе.
	Get(ctx context.Context, userID string) (*domain.QuotaUsage, error)
	Put(ctx context.Context, userID string, usage domain.QuotaUsage) error
	Invalidate(ctx context.Context, userID string) error
}

// RedisSessionCache — реализация SessionCache поверх redis.
type RedisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(client *redis.Client) *RedisSessionCache {
	return &RedisSessionCache{client: client}
}

func sessionQuotaKey(userID string) string {
	return "session:quota:" + userID
}

func (c *RedisSessionCache) Get(ctx context.Context, userID string) (*domain.QuotaUsage, error) {
	data, err := c.client.Get(ctx, sessionQuotaKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read quota from session cache: %w", err)
	}
	var usage domain.QuotaUsage
	if err := json.Unmarshal(data, &usage); err != nil {
		return nil, fmt.Errorf("failed to decode cached quota: %w", err)
	}
	return &usage, nil
}

func (c *RedisSessionCache) Put(ctx context.Context, userID string, usage domain.QuotaUsage) error {
	data, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("failed to encode quota: %w", err)
	}
	if err := c.client.Set(ctx, sessionQuotaKey(userID), data, sessionQuotaTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache quota: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, sessionQuotaKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached quota: %w", err)
	}
	return nil
}

// StorageQuotaService — реализация QuotaService поверх персистентного
// слоя квот.
type StorageQuotaService struct {
	store QuotaStore
}

func NewStorageQuotaService(store QuotaStore) *StorageQuotaService {
	return &StorageQuotaService{store: store}
}

func (s *StorageQuotaService) QuotaAndUsage(ctx context.Context, userID string) (*domain.QuotaUsage, error) {
	return s.store.GetQuota(ctx, userID)
}

// IncrementStorage сдвигает счётчик занятого места и сообщает, пересёк ли
// пользователь порог notifyThreshold (в процентах от лимита).
func (s *StorageQuotaService) IncrementStorage(ctx context.Context, userID string, delta int64, notifyThreshold int) (int64, bool, error) {
	usage, err := s.store.IncrementUsed(ctx, userID, delta)
	if err != nil {
		return 0, false, err
	}

	notify := false
	if delta > 0 && usage.Quota > 0 && notifyThreshold > 0 {
		before := usage.Used - delta
		threshold := usage.Quota * int64(notifyThreshold) / 100
		if before < threshold && usage.Used >= threshold {
			notify = true
			log.Printf("[Quota] User %s crossed %d%% of quota (%d/%d bytes)",
				userID, notifyThreshold, usage.Used, usage.Quota)
		}
	}
	return usage.Used, notify, nil
}

func (s *StorageQuotaService) UpdateQuotaLimit(ctx context.Context, userID string, newLimit int64) error {
	return s.store.UpdateQuotaLimit(ctx, userID, newLimit)
}
