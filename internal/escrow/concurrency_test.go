package escrow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fixer-purse-ledger/internal/database"
	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *database.Service {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       "sqlite3",
		Path:         filepath.Join(t.TempDir(), "purses.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		PingTimeout:  5 * time.Second,
	}, "USD")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestWorkflows_ConcurrentOrders(t *testing.T) {
	ledger := newFileStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	const orders = 20
	for i := 0; i < orders; i++ {
		registerOrder(t, ledger, fmt.Sprintf("order%d", i), fmt.Sprintf("client%d", i), fmt.Sprintf("fixer%d", i), dec("100"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, orders)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderId := fmt.Sprintf("order%d", i)
			if _, err := service.RecordPaymentReceived(ctx, orderId, "pay-"+orderId, dec("100")); err != nil {
				errs <- fmt.Errorf("payment %s: %w", orderId, err)
				return
			}
			var err error
			if i%2 == 0 {
				_, err = service.ReleasePayout(ctx, orderId, fmt.Sprintf("fixer%d", i))
			} else {
				_, err = service.ProcessFullRefund(ctx, orderId, fmt.Sprintf("client%d", i))
			}
			if err != nil {
				errs <- fmt.Errorf("settlement %s: %w", orderId, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 10 payouts realize 20 each, 10 refunds retain 10 each
	balance := platformBalance(t, ledger)
	assert.True(t, balance.Available.Equal(dec("300")), "available %s", balance.Available)
	assert.True(t, balance.Pending.IsZero(), "pending %s", balance.Pending)
	assert.True(t, balance.Commission.IsZero(), "commission %s", balance.Commission)
	assert.True(t, balance.TotalRevenue.Equal(dec("300")), "revenue %s", balance.TotalRevenue)

	assertIntegrity(t, ledger)
}

func TestSettlement_RacingPayoutAndRefundSettleOnce(t *testing.T) {
	ledger := newFileStore(t)
	service := newTestService(t, ledger, nil, nil)
	ctx := context.Background()

	// A second paid order keeps platform pending high enough to cover a double settlement
	for _, orderId := range []string{"order1", "order2"} {
		registerOrder(t, ledger, orderId, "client1", "fixer1", dec("100"))
		_, err := service.RecordPaymentReceived(ctx, orderId, "pay-"+orderId, dec("100"))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	var payoutErr, refundErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, payoutErr = service.ReleasePayout(ctx, "order1", "fixer1")
	}()
	go func() {
		defer wg.Done()
		_, refundErr = service.ProcessFullRefund(ctx, "order1", "client1")
	}()
	wg.Wait()

	if payoutErr == nil {
		assert.ErrorIs(t, refundErr, store.ErrOrderAlreadySettled)
	} else {
		assert.ErrorIs(t, payoutErr, store.ErrOrderAlreadySettled)
		assert.NoError(t, refundErr)
	}

	// Only order2's escrow is still held
	balance := platformBalance(t, ledger)
	assert.True(t, balance.Pending.Equal(dec("80")), "pending %s", balance.Pending)
	assertIntegrity(t, ledger)
}

// settingsOutageStore fails every settings read and records reads made inside a scope
type settingsOutageStore struct {
	store.LedgerStore
	mu           sync.Mutex
	readsInScope int
}

func (s *settingsOutageStore) GetSetting(_ context.Context, key string) (*models.PlatformSetting, error) {
	return nil, errors.New("connection reset reading " + key)
}

func (s *settingsOutageStore) RunInTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	return s.LedgerStore.RunInTx(ctx, func(tx store.LedgerTx) error {
		return fn(&settingsOutageTx{LedgerTx: tx, owner: s})
	})
}

type settingsOutageTx struct {
	store.LedgerTx
	owner *settingsOutageStore
}

func (t *settingsOutageTx) GetSetting(_ context.Context, key string) (*models.PlatformSetting, error) {
	t.owner.mu.Lock()
	t.owner.readsInScope++
	t.owner.mu.Unlock()
	return nil, errors.New("connection reset reading " + key)
}

func TestWorkflows_SettingsReadOutsideScope(t *testing.T) {
	ledger := newTestStore(t)
	outage := &settingsOutageStore{LedgerStore: ledger}
	service := newTestService(t, outage, nil, nil)
	ctx := context.Background()

	registerOrder(t, ledger, "order1", "client1", "fixer1", dec("100"))

	payment, err := service.RecordPaymentReceived(ctx, "order1", "pay1", dec("100"))
	require.NoError(t, err)
	assert.True(t, payment.Commission.Equal(dec("20")))

	refund, err := service.ProcessFullRefund(ctx, "order1", "client1")
	require.NoError(t, err)
	assert.True(t, refund.CommissionRefund.Equal(dec("10")))

	assert.Zero(t, outage.readsInScope)
	assertIntegrity(t, ledger)
}
