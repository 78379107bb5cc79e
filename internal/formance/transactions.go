package formance

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The mirror never rejects a movement the SQL store already committed, so
// every source may overdraft.
const numscriptPurseTransfer = `vars {
  asset $asset
  number $amount
  account $source
  account $destination
  string $purse_tx_type
  string $order_id
  string $payment_id
  string $actor_id
  string $amount_human
}

send [$asset $amount] (
  source = $source allowing unbounded overdraft
  destination = $destination
)

set_tx_meta("event_type", "purse_transaction")
set_tx_meta("purse_tx_type", $purse_tx_type)
set_tx_meta("order_id", $order_id)
set_tx_meta("payment_id", $payment_id)
set_tx_meta("actor_id", $actor_id)
set_tx_meta("amount_human", $amount_human)
`

const (
	bucketAvailable  = "available"
	bucketPending    = "pending"
	bucketCommission = "commission"

	worldAccount = "world"
)

// purseAccount names the Formance account holding one balance bucket of a purse
func purseAccount(purseId, bucket string) string {
	return "purses:" + purseId + ":" + bucket
}

// postingAccounts maps a purse transaction onto the bucket accounts it moves money between
func postingAccounts(tx models.PurseTransaction) (source, destination string, err error) {
	switch tx.Type {
	case models.TxPaymentReceived:
		return worldAccount, purseAccount(tx.ToPurseId, bucketAvailable), nil
	case models.TxCommissionHold:
		return purseAccount(tx.FromPurseId, bucketAvailable), purseAccount(tx.ToPurseId, bucketCommission), nil
	case models.TxEscrowHold:
		return purseAccount(tx.FromPurseId, bucketAvailable), purseAccount(tx.ToPurseId, bucketPending), nil
	case models.TxCommissionToRevenue:
		return purseAccount(tx.FromPurseId, bucketCommission), purseAccount(tx.ToPurseId, bucketAvailable), nil
	case models.TxPayout, models.TxRefundEscrow:
		return purseAccount(tx.FromPurseId, bucketPending), purseAccount(tx.ToPurseId, bucketAvailable), nil
	case models.TxRefundCommission:
		return purseAccount(tx.FromPurseId, bucketCommission), purseAccount(tx.ToPurseId, bucketAvailable), nil
	}
	return "", "", fmt.Errorf("no posting for purse transaction type %q", tx.Type)
}

// smallestUnit converts an amount to integer minor units, e.g. 12.34 USD/2 -> "1234"
func smallestUnit(amount decimal.Decimal, scale int32) string {
	return amount.Shift(scale).BigInt().String()
}

// PublishTransactions posts each committed purse transaction, using its id as
// the Formance reference so a replay is a no-op
func (s *Service) PublishTransactions(ctx context.Context, transactions []models.PurseTransaction) error {
	for _, tx := range transactions {
		if err := s.publishTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publishTransaction(ctx context.Context, tx models.PurseTransaction) error {
	source, destination, err := postingAccounts(tx)
	if err != nil {
		return err
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(tx.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptPurseTransfer,
			Vars: map[string]string{
				"asset":         formanceAsset(s.currency, s.scale),
				"amount":        smallestUnit(tx.Amount, s.scale),
				"source":        source,
				"destination":   destination,
				"purse_tx_type": string(tx.Type),
				"order_id":      tx.OrderId,
				"payment_id":    tx.PaymentId,
				"actor_id":      tx.ActorId,
				"amount_human":  tx.Amount.String(),
			},
		},
	}
	if !tx.CreatedAt.IsZero() {
		postTx.Timestamp = &tx.CreatedAt
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error mirroring purse transaction %s: %w", tx.Id, err)
	}

	zap.L().Info("Purse transaction mirrored in Formance",
		zap.String("transaction_id", tx.Id),
		zap.String("type", string(tx.Type)),
		zap.String("source", source),
		zap.String("destination", destination),
		zap.String("amount", tx.Amount.String()))
	return nil
}

func strPtr(s string) *string { return &s }
