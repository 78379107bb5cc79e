package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"go.uber.org/zap"
)

func getSetting(ctx context.Context, q querier, d dialect, key string) (*models.PlatformSetting, error) {
	var setting models.PlatformSetting
	err := q.QueryRowContext(ctx, d.rebind(queryGetSetting), key).
		Scan(&setting.Key, &setting.Value, &setting.Description, &setting.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrSettingNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &setting, nil
}

// UpsertSetting writes an administrative platform setting
func (s *Service) UpsertSetting(ctx context.Context, params store.UpsertSettingParams) error {
	if params.Key == "" {
		return fmt.Errorf("setting key cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(queryUpsertSetting),
		params.Key, params.Value, params.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", params.Key, err)
	}

	zap.L().Info("Platform setting saved", zap.String("key", params.Key), zap.String("value", params.Value))
	return nil
}
