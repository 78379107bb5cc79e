package database

import (
	"context"
	"database/sql"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
)

var _ store.LedgerTx = (*ledgerTx)(nil)

// ledgerTx routes every read and write of one escrow operation through a single *sql.Tx
type ledgerTx struct {
	tx       *sql.Tx
	dialect  dialect
	currency string
}

func (t *ledgerTx) GetSetting(ctx context.Context, key string) (*models.PlatformSetting, error) {
	return getSetting(ctx, t.tx, t.dialect, key)
}

func (t *ledgerTx) GetPlatformPurse(ctx context.Context) (*models.Purse, error) {
	return getOrCreatePurse(ctx, t.tx, t.dialect, models.PlatformOwner(), t.currency)
}

func (t *ledgerTx) GetOrCreateUserPurse(ctx context.Context, userId string) (*models.Purse, error) {
	if userId == "" {
		return nil, errEmptyUserId
	}
	return getOrCreatePurse(ctx, t.tx, t.dialect, models.UserOwner(userId), t.currency)
}

func (t *ledgerTx) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	return getOrder(ctx, t.tx, t.dialect, orderId, true)
}

func (t *ledgerTx) HasOrderTransaction(ctx context.Context, orderId string, types ...models.TransactionType) (bool, error) {
	return hasOrderTransaction(ctx, t.tx, t.dialect, orderId, types)
}

func (t *ledgerTx) CreatePurseTransaction(ctx context.Context, params store.CreatePurseTransactionParams) (*models.PurseTransaction, error) {
	return createPurseTransaction(ctx, t.tx, t.dialect, params)
}

func (t *ledgerTx) ApplyPurseDelta(ctx context.Context, purseId string, delta models.BalanceDelta) (*models.Purse, error) {
	return applyPurseDelta(ctx, t.tx, t.dialect, purseId, delta)
}

func (t *ledgerTx) SetBalanceAfter(ctx context.Context, transactionId string, side models.TransactionSide, balance decimal.Decimal) error {
	return setBalanceAfter(ctx, t.tx, t.dialect, transactionId, side, balance)
}
