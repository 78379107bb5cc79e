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

// getOrder reads one order; lock holds its row until the scope ends so that
// concurrent settlements of the same order run one after the other
func getOrder(ctx context.Context, q querier, d dialect, orderId string, lock bool) (*models.Order, error) {
	query := queryGetOrder
	if lock {
		query += d.forUpdate()
	}

	var order models.Order
	err := q.QueryRowContext(ctx, d.rebind(query), orderId).
		Scan(&order.Id, &order.ClientId, &order.FixerId, &order.TotalAmount, &order.PlatformFee,
			&order.FixerAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrOrderNotFound, orderId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderId, err)
	}
	return &order, nil
}

// UpsertOrder stores the order-management projection read at settlement
func (s *Service) UpsertOrder(ctx context.Context, order models.Order) error {
	if order.Id == "" || order.ClientId == "" || order.FixerId == "" {
		return fmt.Errorf("order id, client id and fixer id are required")
	}
	if order.TotalAmount.IsNegative() || order.PlatformFee.IsNegative() || order.FixerAmount.IsNegative() {
		return fmt.Errorf("%w: order %s has a negative amount", store.ErrInvalidAmount, order.Id)
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(queryUpsertOrder),
		order.Id, order.ClientId, order.FixerId,
		order.TotalAmount.String(), order.PlatformFee.String(), order.FixerAmount.String(),
		order.Status, order.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", order.Id, err)
	}

	zap.L().Debug("Order saved",
		zap.String("order_id", order.Id),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.String("platform_fee", order.PlatformFee.String()),
		zap.String("fixer_amount", order.FixerAmount.String()))
	return nil
}
