package escrow

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"go.uber.org/zap"
)

// ProcessFullRefund returns the escrow and the refundable share of the
// commission to the client. The retained share becomes platform revenue.
func (s *Service) ProcessFullRefund(ctx context.Context, orderId, clientId string) (*models.RefundResult, error) {
	zap.L().Info("Processing full refund", zap.String("order_id", orderId), zap.String("client_id", clientId))

	if orderId == "" || clientId == "" {
		return nil, fmt.Errorf("%w: order id and client id are required", store.ErrInvalidTransaction)
	}

	// Resolved outside the store transaction
	refundPercentage := GetCommissionRefundPercentage(ctx, s.store)

	var result *models.RefundResult
	err := s.run(ctx, "refund:"+orderId, func(tx store.LedgerTx) ([]models.PurseTransaction, error) {
		order, err := tx.GetOrder(ctx, orderId)
		if err != nil {
			return nil, err
		}
		if order.ClientId != clientId {
			return nil, fmt.Errorf("%w: order %s belongs to client %s, not %s",
				store.ErrInvalidTransaction, orderId, order.ClientId, clientId)
		}
		if !order.TotalAmount.IsPositive() {
			return nil, fmt.Errorf("%w: order %s has nothing to refund", store.ErrInvalidAmount, orderId)
		}
		if err := ensureSettleable(ctx, tx, orderId); err != nil {
			return nil, err
		}

		commission := order.PlatformFee
		escrowAmount := order.TotalAmount.Sub(commission)
		if escrowAmount.IsNegative() {
			return nil, fmt.Errorf("%w: order %s fee %s exceeds total %s",
				store.ErrInvalidAmount, orderId, commission.String(), order.TotalAmount.String())
		}

		platform, err := tx.GetPlatformPurse(ctx)
		if err != nil {
			return nil, err
		}
		client, err := tx.GetOrCreateUserPurse(ctx, clientId)
		if err != nil {
			return nil, err
		}

		commissionRefund, commissionRetained := SplitCommission(commission, refundPercentage, s.scale)

		result = &models.RefundResult{
			TotalRefund:      escrowAmount.Add(commissionRefund),
			EscrowRefund:     escrowAmount,
			CommissionRefund: commissionRefund,
			PlatformRetained: commissionRetained,
		}

		if escrowAmount.IsPositive() {
			result.EscrowTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxRefundEscrow,
					Amount:      escrowAmount,
					FromPurseId: platform.Id,
					ToPurseId:   client.Id,
					OrderId:     orderId,
					Description: fmt.Sprintf("Escrow refunded for order %s", orderId),
				},
				fromDelta: models.BalanceDelta{Pending: escrowAmount.Neg()},
				deferTo:   true,
			})
			if err != nil {
				return nil, err
			}
		}

		if commissionRefund.IsPositive() {
			result.CommissionRefundTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxRefundCommission,
					Amount:      commissionRefund,
					FromPurseId: platform.Id,
					ToPurseId:   client.Id,
					OrderId:     orderId,
					Description: fmt.Sprintf("Commission refunded for order %s", orderId),
					Metadata:    map[string]any{"refundPercentage": refundPercentage.String()},
				},
				fromDelta: models.BalanceDelta{Commission: commissionRefund.Neg()},
				deferTo:   true,
			})
			if err != nil {
				return nil, err
			}
		}

		if commissionRetained.IsPositive() {
			result.RevenueTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxCommissionToRevenue,
					Amount:      commissionRetained,
					FromPurseId: platform.Id,
					ToPurseId:   platform.Id,
					OrderId:     orderId,
					Description: fmt.Sprintf("Retained commission recognized as revenue for order %s", orderId),
				},
				fromDelta: models.BalanceDelta{Commission: commissionRetained.Neg()},
				toDelta:   models.BalanceDelta{Available: commissionRetained, TotalRevenue: commissionRetained},
			})
			if err != nil {
				return nil, err
			}
		}

		// Both client credits land in one mutation
		if result.TotalRefund.IsPositive() {
			updated, err := tx.ApplyPurseDelta(ctx, client.Id, models.BalanceDelta{Available: result.TotalRefund})
			if err != nil {
				return nil, err
			}
			for _, recorded := range []*models.PurseTransaction{result.EscrowTx, result.CommissionRefundTx} {
				if recorded == nil {
					continue
				}
				if err := backfill(ctx, tx, recorded, models.SideTo, updated); err != nil {
					return nil, err
				}
			}
		}

		return result.Transactions(), nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Full refund processed",
		zap.String("order_id", orderId),
		zap.String("client_id", clientId),
		zap.String("total_refund", result.TotalRefund.String()),
		zap.String("platform_retained", result.PlatformRetained.String()))
	return result, nil
}
