package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nestdrive/internal/domain"
)

type QuotaRepository struct {
	db           *sqlx.DB
	defaultLimit int64
}

func NewQuotaRepository(db *sqlx.DB, defaultLimit int64) *QuotaRepository {
	return &QuotaRepository{db: db, defaultLimit: defaultLimit}
}

// GetQuota возвращает квоту пользователя, при первом обращении создавая
// строку с лимитом по умолчанию.
func (r *QuotaRepository) GetQuota(ctx context.Context, ownerID string) (*domain.QuotaUsage, error) {
	var quota domain.QuotaUsage
	err := r.db.GetContext(ctx, &quota,
		`SELECT total_bytes_limit, used_bytes FROM storage_quotas WHERE owner_id = $1`,
		ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			quota = domain.QuotaUsage{Quota: r.defaultLimit, Used: 0}
			if err := r.create(ctx, ownerID, &quota); err != nil {
				return nil, fmt.Errorf("failed to create quota: %w", err)
			}
			return &quota, nil
		}
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return &quota, nil
}

func (r *QuotaRepository) create(ctx context.Context, ownerID string, quota *domain.QuotaUsage) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO storage_quotas (owner_id, total_bytes_limit, used_bytes)
        VALUES ($1, $2, $3)
        ON CONFLICT (owner_id) DO NOTHING`,
		ownerID, quota.Quota, quota.Used)
	return err
}

// IncrementUsed атомарно сдвигает счётчик занятого места (delta может быть
// отрицательной) и возвращает итог.
func (r *QuotaRepository) IncrementUsed(ctx context.Context, ownerID string, delta int64) (*domain.QuotaUsage, error) {
	var quota domain.QuotaUsage
	err := r.db.QueryRowContext(ctx, `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2
        RETURNING total_bytes_limit, used_bytes`,
		delta, ownerID).Scan(&quota.Quota, &quota.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Строки ещё нет: создаём и повторяем
			if _, err := r.GetQuota(ctx, ownerID); err != nil {
				return nil, err
			}
			return r.IncrementUsed(ctx, ownerID, delta)
		}
		return nil, fmt.Errorf("failed to increment used space: %w", err)
	}
	return &quota, nil
}

func (r *QuotaRepository) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE storage_quotas
        SET total_bytes_limit = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("quota not found for owner: %s", ownerID)
	}
	return nil
}
