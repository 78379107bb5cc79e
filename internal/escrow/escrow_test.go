package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fixer-purse-ledger/internal/database"
	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []models.PurseTransaction
	err       error
}

func (p *recordingPublisher) PublishTransactions(_ context.Context, transactions []models.PurseTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, transactions...)
	return p.err
}

type memoryGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func (g *memoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
}

// failingStore aborts the scope when a transaction of the given type is recorded
type failingStore struct {
	store.LedgerStore
	failOn models.TransactionType
}

func (s *failingStore) RunInTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	return s.LedgerStore.RunInTx(ctx, func(tx store.LedgerTx) error {
		return fn(&failingTx{LedgerTx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	store.LedgerTx
	failOn models.TransactionType
}

func (t *failingTx) CreatePurseTransaction(ctx context.Context, params store.CreatePurseTransactionParams) (*models.PurseTransaction, error) {
	if params.Type == t.failOn {
		return nil, errors.New("injected failure")
	}
	return t.LedgerTx.CreatePurseTransaction(ctx, params)
}

func newTestStore(t *testing.T) *database.Service {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       "sqlite3",
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}, "USD")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func newTestService(t *testing.T, ledger store.LedgerStore, publisher Publisher, guard Guard) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Store: ledger, Publisher: publisher, Guard: guard, Scale: 2})
	require.NoError(t, err)
	return service
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func registerOrder(t *testing.T, ledger store.LedgerStore, id, clientId, fixerId string, total decimal.Decimal) models.Order {
	t.Helper()
	fee, fixerAmount := SplitCommission(total, DefaultCommissionPercentage, 2)
	order := models.Order{
		Id:          id,
		ClientId:    clientId,
		FixerId:     fixerId,
		TotalAmount: total,
		PlatformFee: fee,
		FixerAmount: fixerAmount,
		Status:      "PAID",
	}
	require.NoError(t, ledger.UpsertOrder(context.Background(), order))
	return order
}

func platformBalance(t *testing.T, ledger store.LedgerStore) models.PurseBalance {
	t.Helper()
	platform, err := ledger.GetPlatformPurse(context.Background())
	require.NoError(t, err)
	return platform.Balance()
}

func assertIntegrity(t *testing.T, ledger store.LedgerStore) {
	t.Helper()
	purses, err := ledger.ListPurses(context.Background())
	require.NoError(t, err)
	for _, purse := range purses {
		report, err := ledger.VerifyPurseIntegrity(context.Background(), purse.Id)
		require.NoError(t, err)
		assert.True(t, report.IsValid, "purse %s drifted: %+v", purse.Id, report)
	}
}

func TestEscrowLifecycle_PayoutAndRefund(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	// Order 1: paid then settled
	registerOrder(t, ledger, "order1", "client1", "fixer1", dec("100"))
	before := platformBalance(t, ledger)

	payment, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	require.NoError(t, err)
	assert.True(t, payment.Commission.Equal(dec("20")))
	assert.True(t, payment.EscrowAmount.Equal(dec("80")))
	assert.Len(t, payment.Transactions(), 3)

	afterPayment := platformBalance(t, ledger)
	assert.True(t, afterPayment.Available.Equal(before.Available), "available must be net zero")
	assert.True(t, afterPayment.Pending.Sub(before.Pending).Equal(dec("80")))
	assert.True(t, afterPayment.Commission.Sub(before.Commission).Equal(dec("20")))
	assertIntegrity(t, ledger)

	payout, err := service.ReleasePayout(ctx, "order1", "fixer1")
	require.NoError(t, err)
	assert.True(t, payout.Commission.Equal(dec("20")))
	assert.True(t, payout.FixerAmount.Equal(dec("80")))

	afterPayout := platformBalance(t, ledger)
	assert.True(t, afterPayment.Pending.Sub(afterPayout.Pending).Equal(dec("80")))
	assert.True(t, afterPayment.Commission.Sub(afterPayout.Commission).Equal(dec("20")))
	assert.True(t, afterPayout.TotalRevenue.Equal(dec("20")))

	fixer, err := ledger.GetOrCreateUserPurse(ctx, "fixer1")
	require.NoError(t, err)
	assert.True(t, fixer.Available.Equal(dec("80")))
	assertIntegrity(t, ledger)

	// Order 2: paid then fully refunded at the default 50% commission refund
	registerOrder(t, ledger, "order2", "client2", "fixer1", dec("100"))
	_, err = service.RecordPaymentReceived(ctx, "order2", "pay2", dec("100"))
	require.NoError(t, err)

	refund, err := service.ProcessFullRefund(ctx, "order2", "client2")
	require.NoError(t, err)
	assert.True(t, refund.EscrowRefund.Equal(dec("80")))
	assert.True(t, refund.CommissionRefund.Equal(dec("10")))
	assert.True(t, refund.PlatformRetained.Equal(dec("10")))
	assert.True(t, refund.TotalRefund.Equal(dec("90")))
	assert.True(t, refund.EscrowRefund.Add(refund.CommissionRefund).Add(refund.PlatformRetained).Equal(dec("100")))
	assert.Len(t, refund.Transactions(), 3)

	client, err := ledger.GetOrCreateUserPurse(ctx, "client2")
	require.NoError(t, err)
	assert.True(t, client.Available.Equal(dec("90")))

	final := platformBalance(t, ledger)
	assert.True(t, final.TotalRevenue.Equal(dec("30")))
	assert.True(t, final.Pending.IsZero())
	assert.True(t, final.Commission.IsZero())
	assertIntegrity(t, ledger)

	// Both client credits are visible on the refund records
	require.NotNil(t, refund.EscrowTx)
	require.NotNil(t, refund.CommissionRefundTx)
	assert.True(t, refund.EscrowTx.ToBalanceBefore.Decimal.IsZero())
	assert.True(t, refund.EscrowTx.ToBalanceAfter.Decimal.Equal(dec("90")))
	assert.True(t, refund.CommissionRefundTx.ToBalanceAfter.Decimal.Equal(dec("90")))
}

func TestRecordPaymentReceived_Snapshots(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	result, err := service.RecordPaymentReceived(models.WithActor(ctx, "webhook"), "order1", "pay1", dec("100"))
	require.NoError(t, err)

	assert.True(t, result.PaymentTx.ToBalanceBefore.Decimal.IsZero())
	assert.True(t, result.PaymentTx.ToBalanceAfter.Decimal.Equal(dec("100")))
	assert.False(t, result.PaymentTx.FromBalanceBefore.Valid)

	// Holds move money inside the platform purse, so its total is unchanged
	assert.True(t, result.CommissionTx.FromBalanceBefore.Decimal.Equal(dec("100")))
	assert.True(t, result.CommissionTx.FromBalanceAfter.Decimal.Equal(dec("100")))
	assert.True(t, result.EscrowTx.ToBalanceAfter.Decimal.Equal(dec("100")))

	history, err := ledger.GetPurseTransactions(ctx, result.PaymentTx.ToPurseId, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, tx := range history {
		assert.Equal(t, "webhook", tx.ActorId)
		assert.Equal(t, "order1", tx.OrderId)
		assert.Equal(t, "pay1", tx.PaymentId)
		assert.True(t, tx.ToBalanceAfter.Valid, "%s missing to after", tx.Type)
	}
}

func TestRecordPaymentReceived_InvalidAmounts(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	for _, amount := range []string{"0", "-10", "10.005"} {
		_, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec(amount))
		assert.ErrorIs(t, err, store.ErrInvalidAmount, amount)
	}

	purses, err := ledger.ListPurses(ctx)
	require.NoError(t, err)
	assert.Empty(t, purses, "rejected payments must not touch the store")
}

func TestRecordPaymentReceived_Duplicate(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	_, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("50"))
	require.NoError(t, err)

	_, err = service.RecordPaymentReceived(ctx, "order1", "pay1-retry", dec("50"))
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)

	balance := platformBalance(t, ledger)
	assert.True(t, balance.Total.Equal(dec("50")), "duplicate must not double count")
}

func TestRecordPaymentReceived_RollsBackOnFailure(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, &failingStore{LedgerStore: ledger, failOn: models.TxEscrowHold}, nil, nil)
	ctx := context.Background()

	_, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	require.Error(t, err)

	balance := platformBalance(t, ledger)
	assert.True(t, balance.Total.IsZero())

	history, err := ledger.GetPurseTransactions(ctx, balance.PurseId, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordPaymentReceived_CommissionSettings(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		wantCommission string
		wantTxs        int
	}{
		{"configured", "0.15", "15", 3},
		{"out of range falls back", "1.5", "20", 3},
		{"unparseable falls back", "fifteen", "20", 3},
		{"zero commission skips the hold", "0", "0", 2},
		{"full commission skips the escrow", "1", "100", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newTestStore(t)
			service := newTestService(t, ledger, nil, nil)
			ctx := context.Background()

			require.NoError(t, ledger.UpsertSetting(ctx, store.UpsertSettingParams{
				Key:   SettingCommissionPercentage,
				Value: tt.value,
			}))

			result, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
			require.NoError(t, err)
			assert.True(t, result.Commission.Equal(dec(tt.wantCommission)), "commission %s", result.Commission)
			assert.True(t, result.Commission.Add(result.EscrowAmount).Equal(dec("100")))
			assert.Len(t, result.Transactions(), tt.wantTxs)

			balance := platformBalance(t, ledger)
			assert.True(t, balance.Available.IsZero())
			assertIntegrity(t, ledger)
		})
	}
}

func TestReleasePayout_Guards(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	_, err := service.ReleasePayout(ctx, "missing", "fixer1")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)

	registerOrder(t, ledger, "order1", "client1", "fixer1", dec("100"))

	_, err = service.ReleasePayout(ctx, "order1", "fixer1")
	assert.ErrorIs(t, err, store.ErrPaymentNotRecorded)

	_, err = service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	require.NoError(t, err)

	_, err = service.ReleasePayout(ctx, "order1", "someone-else")
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = service.ReleasePayout(ctx, "order1", "fixer1")
	require.NoError(t, err)

	_, err = service.ReleasePayout(ctx, "order1", "fixer1")
	assert.ErrorIs(t, err, store.ErrOrderAlreadySettled)

	_, err = service.ProcessFullRefund(ctx, "order1", "client1")
	assert.ErrorIs(t, err, store.ErrOrderAlreadySettled)

	assertIntegrity(t, ledger)
}

func TestProcessFullRefund_MissingOrderLeavesNoTrace(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	_, err := service.ProcessFullRefund(ctx, "missing", "client1")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)

	purses, err := ledger.ListPurses(ctx)
	require.NoError(t, err)
	assert.Empty(t, purses)
}

func TestProcessFullRefund_InsufficientEscrowRollsBack(t *testing.T) {
	ledger := newTestStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	registerOrder(t, ledger, "order1", "client1", "fixer1", dec("100"))
	_, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	require.NoError(t, err)
	before := platformBalance(t, ledger)

	// Order management reports no fee, so the refund asks for more escrow than was held
	require.NoError(t, ledger.UpsertOrder(ctx, models.Order{
		Id:          "order1",
		ClientId:    "client1",
		FixerId:     "fixer1",
		TotalAmount: dec("100"),
		PlatformFee: decimal.Zero,
		FixerAmount: dec("100"),
	}))

	_, err = service.ProcessFullRefund(ctx, "order1", "client1")
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	after := platformBalance(t, ledger)
	assert.Equal(t, before.Total.String(), after.Total.String())
	assert.Equal(t, before.Pending.String(), after.Pending.String())

	history, err := ledger.GetPurseTransactions(ctx, before.PurseId, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 3, "only the payment records remain")
	assertIntegrity(t, ledger)
}

func TestProcessFullRefund_RefundPercentages(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		wantRefund   string
		wantRetained string
		wantTxs      int
	}{
		{"full commission refund", "1", "20", "0", 2},
		{"no commission refund", "0", "0", "20", 2},
		{"negative falls back to half", "-0.2", "10", "10", 3},
		{"above one falls back to half", "2", "10", "10", 3},
		{"rounding keeps the sum", "0.333", "6.66", "13.34", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newTestStore(t)
			service := newTestService(t, ledger, nil, nil)
			ctx := context.Background()

			require.NoError(t, ledger.UpsertSetting(ctx, store.UpsertSettingParams{
				Key:   SettingCommissionRefundPercentage,
				Value: tt.value,
			}))
			registerOrder(t, ledger, "order1", "client1", "fixer1", dec("100"))
			_, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
			require.NoError(t, err)

			result, err := service.ProcessFullRefund(ctx, "order1", "client1")
			require.NoError(t, err)
			assert.True(t, result.CommissionRefund.Equal(dec(tt.wantRefund)), "refund %s", result.CommissionRefund)
			assert.True(t, result.PlatformRetained.Equal(dec(tt.wantRetained)), "retained %s", result.PlatformRetained)
			assert.True(t, result.EscrowRefund.Add(result.CommissionRefund).Add(result.PlatformRetained).Equal(dec("100")))
			assert.Len(t, result.Transactions(), tt.wantTxs)

			client, err := ledger.GetOrCreateUserPurse(ctx, "client1")
			require.NoError(t, err)
			assert.True(t, client.Available.Equal(result.TotalRefund))
			assertIntegrity(t, ledger)
		})
	}
}

func TestService_GuardAndPublisher(t *testing.T) {
	ledger := newTestStore(t)
	publisher := &recordingPublisher{}
	guard := &memoryGuard{held: map[string]bool{}}
	service := newTestService(t, ledger, publisher, guard)
	ctx := context.Background()

	_, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	require.NoError(t, err)
	assert.Len(t, publisher.published, 3)
	assert.True(t, guard.held["payment:order1"])

	_, err = service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)
	assert.Len(t, publisher.published, 3, "rejected calls publish nothing")

	// A failed workflow releases its key so the caller can retry
	_, err = service.ReleasePayout(ctx, "order1", "fixer1")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
	assert.False(t, guard.held["payout:order1"])

	// Mirror failures never fail the workflow
	publisher.err = errors.New("mirror down")
	registerOrder(t, ledger, "order1", "client1", "fixer1", dec("100"))
	_, err = service.ReleasePayout(ctx, "order1", "fixer1")
	require.NoError(t, err)
	assert.Len(t, publisher.published, 5)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)

	_, err = NewService(ServiceConfig{Store: newTestStore(t), Scale: -1})
	assert.Error(t, err)
}
