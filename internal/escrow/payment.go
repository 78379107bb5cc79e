package escrow

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordPaymentReceived credits a cleared client payment to the platform purse
// and splits it into a commission hold and an escrow hold. Platform available
// is unchanged by the call as a whole.
func (s *Service) RecordPaymentReceived(ctx context.Context, orderId, paymentId string, totalAmount decimal.Decimal) (*models.PaymentReceivedResult, error) {
	zap.L().Info("Recording payment received",
		zap.String("order_id", orderId),
		zap.String("payment_id", paymentId),
		zap.String("total_amount", totalAmount.String()))

	if orderId == "" {
		return nil, fmt.Errorf("%w: order id is required", store.ErrInvalidTransaction)
	}
	if !totalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: payment total %s", store.ErrInvalidAmount, totalAmount.String())
	}
	if !totalAmount.Equal(totalAmount.Round(s.scale)) {
		return nil, fmt.Errorf("%w: payment total %s exceeds %d decimal places", store.ErrInvalidAmount, totalAmount.String(), s.scale)
	}

	// Resolved outside the store transaction
	percentage := GetCommissionPercentage(ctx, s.store)

	var result *models.PaymentReceivedResult
	err := s.run(ctx, "payment:"+orderId, func(tx store.LedgerTx) ([]models.PurseTransaction, error) {
		platform, err := tx.GetPlatformPurse(ctx)
		if err != nil {
			return nil, err
		}

		commission, escrowAmount := SplitCommission(totalAmount, percentage, s.scale)

		result = &models.PaymentReceivedResult{
			TotalAmount:  totalAmount,
			Commission:   commission,
			EscrowAmount: escrowAmount,
		}

		result.PaymentTx, err = post(ctx, tx, posting{
			params: store.CreatePurseTransactionParams{
				Type:        models.TxPaymentReceived,
				Amount:      totalAmount,
				ToPurseId:   platform.Id,
				OrderId:     orderId,
				PaymentId:   paymentId,
				Description: fmt.Sprintf("Payment received for order %s", orderId),
				Metadata:    map[string]any{"commissionPercentage": percentage.String()},
			},
			toDelta: models.BalanceDelta{Available: totalAmount},
		})
		if err != nil {
			return nil, err
		}

		if commission.IsPositive() {
			result.CommissionTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxCommissionHold,
					Amount:      commission,
					FromPurseId: platform.Id,
					ToPurseId:   platform.Id,
					OrderId:     orderId,
					PaymentId:   paymentId,
					Description: fmt.Sprintf("Commission held for order %s", orderId),
				},
				fromDelta: models.BalanceDelta{Available: commission.Neg()},
				toDelta:   models.BalanceDelta{Commission: commission},
			})
			if err != nil {
				return nil, err
			}
		}

		if escrowAmount.IsPositive() {
			result.EscrowTx, err = post(ctx, tx, posting{
				params: store.CreatePurseTransactionParams{
					Type:        models.TxEscrowHold,
					Amount:      escrowAmount,
					FromPurseId: platform.Id,
					ToPurseId:   platform.Id,
					OrderId:     orderId,
					PaymentId:   paymentId,
					Description: fmt.Sprintf("Escrow held for order %s", orderId),
				},
				fromDelta: models.BalanceDelta{Available: escrowAmount.Neg()},
				toDelta:   models.BalanceDelta{Pending: escrowAmount},
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

	zap.L().Info("Payment received recorded",
		zap.String("order_id", orderId),
		zap.String("commission", result.Commission.String()),
		zap.String("escrow_amount", result.EscrowAmount.String()))
	return result, nil
}
