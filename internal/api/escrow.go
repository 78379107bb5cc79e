package api

import (
	"context"

	"fixer-purse-ledger/internal/models"
)

func withActor(ctx context.Context, actorId string) context.Context {
	if actorId == "" {
		return ctx
	}
	return models.WithActor(ctx, actorId)
}

// RecordPaymentReceived splits a cleared client payment into commission and escrow holds
func (s *LedgerService) RecordPaymentReceived(ctx context.Context, req models.PaymentReceivedRequest) (*models.PaymentReceivedResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.escrow.RecordPaymentReceived(withActor(ctx, req.ActorId), req.OrderId, req.PaymentId, req.TotalAmount)
}

// ReleasePayout realizes the order commission and pays the escrow to the fixer
func (s *LedgerService) ReleasePayout(ctx context.Context, req models.PayoutRequest) (*models.PayoutResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.escrow.ReleasePayout(withActor(ctx, req.ActorId), req.OrderId, req.FixerId)
}

// ProcessFullRefund returns escrow and refundable commission to the client
func (s *LedgerService) ProcessFullRefund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.escrow.ProcessFullRefund(withActor(ctx, req.ActorId), req.OrderId, req.ClientId)
}
