package store

import (
	"context"
	"errors"
	"fmt"

	"fixer-purse-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrPurseNotFound          = errors.New("purse not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientBalance    = errors.New("insufficient purse balance")
	ErrInvalidTransaction     = errors.New("invalid purse transaction")
	ErrTransactionImmutable   = errors.New("purse transaction is immutable")
	ErrSettingNotFound        = errors.New("platform setting not found")
	ErrSettingOutOfRange      = errors.New("platform setting out of range")
	ErrOrderAlreadySettled    = errors.New("order already settled")
	ErrPaymentNotRecorded     = errors.New("no payment recorded for order")
)

// IntegrityMismatchError reports drift between a purse's stored total and its
// transaction history. Advisory only: it is for alerting, never for blocking.
type IntegrityMismatchError struct {
	PurseId    string
	Stored     decimal.Decimal
	Calculated decimal.Decimal
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("purse %s integrity mismatch: stored=%s calculated=%s difference=%s",
		e.PurseId, e.Stored.String(), e.Calculated.String(), e.Stored.Sub(e.Calculated).String())
}

// IntegrityError returns an *IntegrityMismatchError for an invalid report, nil otherwise.
func IntegrityError(report *models.IntegrityReport) error {
	if report == nil || report.IsValid {
		return nil
	}
	return &IntegrityMismatchError{
		PurseId:    report.PurseId,
		Stored:     report.PurseBalance,
		Calculated: report.CalculatedBalance,
	}
}

// CreatePurseTransactionParams describes one transfer intent handed to the recorder.
type CreatePurseTransactionParams struct {
	Type        models.TransactionType
	Amount      decimal.Decimal
	FromPurseId string
	ToPurseId   string
	OrderId     string
	PaymentId   string
	Description string
	Metadata    map[string]any
	ActorId     string
}

// UpsertSettingParams contains an administrative platform setting write.
type UpsertSettingParams struct {
	Key         string
	Value       string
	Description string
}

// SettingsReader is satisfied by both the store and an open ledger transaction.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (*models.PlatformSetting, error)
}

// LedgerTx is the atomic scope a workflow runs in. Every call made through it
// commits or rolls back together.
type LedgerTx interface {
	SettingsReader

	GetPlatformPurse(ctx context.Context) (*models.Purse, error)
	GetOrCreateUserPurse(ctx context.Context, userId string) (*models.Purse, error)
	// GetOrder locks the order row until the scope ends
	GetOrder(ctx context.Context, orderId string) (*models.Order, error)
	HasOrderTransaction(ctx context.Context, orderId string, types ...models.TransactionType) (bool, error)

	// CreatePurseTransaction inserts the row with *BalanceBefore snapshots and
	// leaves *BalanceAfter unset.
	CreatePurseTransaction(ctx context.Context, params CreatePurseTransactionParams) (*models.PurseTransaction, error)
	// ApplyPurseDelta mutates the purse balances and returns the updated purse.
	ApplyPurseDelta(ctx context.Context, purseId string, delta models.BalanceDelta) (*models.Purse, error)
	// SetBalanceAfter backfills one *BalanceAfter snapshot. It may be called once per side.
	SetBalanceAfter(ctx context.Context, transactionId string, side models.TransactionSide, balance decimal.Decimal) error
}

// LedgerStore defines the contract that every backend (SQLite, PostgreSQL) must satisfy.
type LedgerStore interface {
	SettingsReader

	// --- Purses ---
	GetPlatformPurse(ctx context.Context) (*models.Purse, error)
	GetOrCreateUserPurse(ctx context.Context, userId string) (*models.Purse, error)
	GetPurse(ctx context.Context, purseId string) (*models.Purse, error)
	ListPurses(ctx context.Context) ([]models.Purse, error)
	GetPurseBalance(ctx context.Context, purseId string) (*models.PurseBalance, error)
	VerifyPurseIntegrity(ctx context.Context, purseId string) (*models.IntegrityReport, error)

	// --- Transactions ---
	GetPurseTransactions(ctx context.Context, purseId string, limit, offset int) ([]models.PurseTransaction, error)
	RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// --- Collaborator data ---
	UpsertSetting(ctx context.Context, params UpsertSettingParams) error
	UpsertOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, orderId string) (*models.Order, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
