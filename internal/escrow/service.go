package escrow

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Publisher receives the transactions of a committed workflow
type Publisher interface {
	PublishTransactions(ctx context.Context, transactions []models.PurseTransaction) error
}

// Guard rejects a second concurrent or repeated invocation of the same workflow
type Guard interface {
	// Acquire returns false when key is already held
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

type ServiceConfig struct {
	Store     store.LedgerStore
	Publisher Publisher // optional
	Guard     Guard     // optional
	Scale     int32
}

// Service runs the payment, payout and refund workflows. Each call executes in
// one store transaction; an error leaves no records or balance changes behind.
type Service struct {
	store     store.LedgerStore
	publisher Publisher
	guard     Guard
	scale     int32
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if cfg.Scale < 0 {
		return nil, fmt.Errorf("currency scale cannot be negative, got %d", cfg.Scale)
	}

	return &Service{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		guard:     cfg.Guard,
		scale:     cfg.Scale,
	}, nil
}

// run wraps fn with the idempotency guard and the store transaction, then
// publishes what fn recorded once the scope has committed
func (s *Service) run(ctx context.Context, key string, fn func(tx store.LedgerTx) ([]models.PurseTransaction, error)) error {
	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, key)
		if err != nil {
			zap.L().Warn("Idempotency guard unavailable, relying on storage constraints",
				zap.String("key", key), zap.Error(err))
		} else if !acquired {
			return fmt.Errorf("%w: %s already in progress or processed", store.ErrDuplicateTransaction, key)
		}
	}

	var recorded []models.PurseTransaction
	err := s.store.RunInTx(ctx, func(tx store.LedgerTx) error {
		var err error
		recorded, err = fn(tx)
		return err
	})
	if err != nil {
		if s.guard != nil {
			s.guard.Release(ctx, key)
		}
		zap.L().Error("Escrow workflow aborted", zap.String("key", key), zap.Error(err))
		return err
	}

	s.publish(ctx, recorded)
	return nil
}

func (s *Service) publish(ctx context.Context, transactions []models.PurseTransaction) {
	if s.publisher == nil || len(transactions) == 0 {
		return
	}
	if err := s.publisher.PublishTransactions(ctx, transactions); err != nil {
		zap.L().Warn("Failed to mirror purse transactions",
			zap.Int("count", len(transactions)),
			zap.Error(err))
	}
}

// posting is one transfer intent plus the balance change it causes on each side
type posting struct {
	params    store.CreatePurseTransactionParams
	fromDelta models.BalanceDelta
	toDelta   models.BalanceDelta
	// deferTo leaves the destination purse untouched; the caller credits it and backfills later
	deferTo bool
}

// post runs the two-phase write: record the transaction, mutate the purse
// rows, then backfill the after-balance snapshots on the record
func post(ctx context.Context, tx store.LedgerTx, p posting) (*models.PurseTransaction, error) {
	p.params.ActorId = models.ActorFromContext(ctx)

	recorded, err := tx.CreatePurseTransaction(ctx, p.params)
	if err != nil {
		return nil, err
	}

	fromId, toId := p.params.FromPurseId, p.params.ToPurseId
	if fromId != "" && fromId == toId {
		updated, err := tx.ApplyPurseDelta(ctx, fromId, p.fromDelta.Add(p.toDelta))
		if err != nil {
			return nil, err
		}
		if err := backfill(ctx, tx, recorded, models.SideFrom, updated); err != nil {
			return nil, err
		}
		if err := backfill(ctx, tx, recorded, models.SideTo, updated); err != nil {
			return nil, err
		}
		return recorded, nil
	}

	if fromId != "" {
		updated, err := tx.ApplyPurseDelta(ctx, fromId, p.fromDelta)
		if err != nil {
			return nil, err
		}
		if err := backfill(ctx, tx, recorded, models.SideFrom, updated); err != nil {
			return nil, err
		}
	}
	if toId != "" && !p.deferTo {
		updated, err := tx.ApplyPurseDelta(ctx, toId, p.toDelta)
		if err != nil {
			return nil, err
		}
		if err := backfill(ctx, tx, recorded, models.SideTo, updated); err != nil {
			return nil, err
		}
	}
	return recorded, nil
}

// backfill writes the after-balance of one side and mirrors it onto the in-memory record
func backfill(ctx context.Context, tx store.LedgerTx, recorded *models.PurseTransaction, side models.TransactionSide, purse *models.Purse) error {
	total := purse.Total()
	if err := tx.SetBalanceAfter(ctx, recorded.Id, side, total); err != nil {
		return err
	}
	if side == models.SideFrom {
		recorded.FromBalanceAfter = decimal.NewNullDecimal(total)
	} else {
		recorded.ToBalanceAfter = decimal.NewNullDecimal(total)
	}
	return nil
}

// settlementTypes mark an order whose escrow has already been paid out or refunded
var settlementTypes = []models.TransactionType{
	models.TxPayout, models.TxRefundEscrow, models.TxRefundCommission, models.TxCommissionToRevenue,
}

// ensureSettleable requires a recorded payment and no prior settlement for the order
func ensureSettleable(ctx context.Context, tx store.LedgerTx, orderId string) error {
	paid, err := tx.HasOrderTransaction(ctx, orderId, models.TxPaymentReceived)
	if err != nil {
		return err
	}
	if !paid {
		return fmt.Errorf("%w: %s", store.ErrPaymentNotRecorded, orderId)
	}

	settled, err := tx.HasOrderTransaction(ctx, orderId, settlementTypes...)
	if err != nil {
		return err
	}
	if settled {
		return fmt.Errorf("%w: %s", store.ErrOrderAlreadySettled, orderId)
	}
	return nil
}
