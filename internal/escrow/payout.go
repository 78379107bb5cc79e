package escrow

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"go.uber.org/zap"
)

// ReleasePayout settles an order: the held commission becomes platform
// revenue and the escrow moves to the fixer. Amounts come from the order
// record and are never recomputed.
func (s *Service) ReleasePayout(ctx context.Context, orderId, fixerId string) (*models.PayoutResult, error) {
	zap.L().Info("Releasing payout", zap.String("order_id", orderId), zap.String("fixer_id", fixerId))

	if orderId == "" || fixerId == "" {
		return nil, fmt.Errorf("%w: order id and fixer id are required", store.ErrInvalidTransaction)
	}

	var result *models.PayoutResult
	err := s.run(ctx, "payout:"+orderId, func(tx store.LedgerTx) ([]models.PurseTransaction, error) {
		order, err := tx.GetOrder(ctx, orderId)
		if err != nil {
			return nil, err
		}
		if order.FixerId != fixerId {
			return nil, fmt.Errorf("%w: order %s belongs to fixer %s, not %s",
				store.ErrInvalidTransaction, orderId, order.FixerId, fixerId)
		}
		if !order.PlatformFee.Add(order.FixerAmount).IsPositive() {
			return nil, fmt.Errorf("%w: order %s has nothing to pay out", store.ErrInvalidAmount, orderId)
		}
		if err := ensureSettleable(ctx, tx, orderId); err != nil {
			return nil, err
		}

		platform, err := tx.GetPlatformPurse(ctx)
		if err != nil {
			return nil, err
		}
		fixer, err := tx.GetOrCreateUserPurse(ctx, fixerId)
		if err != nil {
			return nil, err
		}

		result = &models.PayoutResult{
			Commission:  order.PlatformFee,
			FixerAmount: order.FixerAmount,
		}

		if order.PlatformFee.IsPositive() {
			result.CommissionTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxCommissionToRevenue,
					Amount:      order.PlatformFee,
					FromPurseId: platform.Id,
					ToPurseId:   platform.Id,
					OrderId:     orderId,
					Description: fmt.Sprintf("Commission recognized as revenue for order %s", orderId),
				},
				fromDelta: models.BalanceDelta{Commission: order.PlatformFee.Neg()},
				toDelta:   models.BalanceDelta{Available: order.PlatformFee, TotalRevenue: order.PlatformFee},
			})
			if err != nil {
				return nil, err
			}
		}

		if order.FixerAmount.IsPositive() {
			result.PayoutTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxPayout,
					Amount:      order.FixerAmount,
					FromPurseId: platform.Id,
					ToPurseId:   fixer.Id,
					OrderId:     orderId,
					Description: fmt.Sprintf("Payout to fixer for order %s", orderId),
					Metadata:    map[string]any{"fixerId": fixerId},
				},
				fromDelta: models.BalanceDelta{Pending: order.FixerAmount.Neg()},
				toDelta:   models.BalanceDelta{Available: order.FixerAmount},
			})
			if err != nil {
				return nil, err
			}
		}

		return result.Transactions(), nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Payout released",
		zap.String("order_id", orderId),
		zap.String("fixer_id", fixerId),
		zap.String("commission", result.Commission.String()),
		zap.String("fixer_amount", result.FixerAmount.String()))
	return result, nil
}
