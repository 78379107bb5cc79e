package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := models.DatabaseConfig{
		Driver:       driverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}

	service, err := NewService(context.Background(), cfg, "USD")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func TestNewService_InvalidConfig(t *testing.T) {
	base := models.DatabaseConfig{
		Driver:       driverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		PingTimeout:  time.Second,
	}

	tests := []struct {
		name     string
		mutate   func(cfg *models.DatabaseConfig)
		currency string
	}{
		{"zero max open conns", func(cfg *models.DatabaseConfig) { cfg.MaxOpenConns = 0 }, "USD"},
		{"negative idle conns", func(cfg *models.DatabaseConfig) { cfg.MaxIdleConns = -1 }, "USD"},
		{"zero ping timeout", func(cfg *models.DatabaseConfig) { cfg.PingTimeout = 0 }, "USD"},
		{"unknown driver", func(cfg *models.DatabaseConfig) { cfg.Driver = "mysql" }, "USD"},
		{"postgres without url", func(cfg *models.DatabaseConfig) { cfg.Driver = driverPostgres }, "USD"},
		{"empty path", func(cfg *models.DatabaseConfig) { cfg.Path = "" }, "USD"},
		{"empty currency", func(cfg *models.DatabaseConfig) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if service, err := NewService(context.Background(), cfg, tt.currency); err == nil {
				service.Close()
				t.Fatal("Expected configuration error, got nil")
			}
		})
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	if err := service.InitSchema(context.Background()); err != nil {
		t.Fatalf("Second InitSchema failed: %v", err)
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	platform, err := service.GetPlatformPurse(ctx)
	if err != nil {
		t.Fatalf("GetPlatformPurse failed: %v", err)
	}

	err = service.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := tx.ApplyPurseDelta(ctx, platform.Id, models.BalanceDelta{Available: decimal.NewFromInt(50)}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("Expected boom error, got %v", err)
	}

	balance, err := service.GetPurseBalance(ctx, platform.Id)
	if err != nil {
		t.Fatalf("GetPurseBalance failed: %v", err)
	}
	if !balance.Available.IsZero() {
		t.Errorf("Expected rolled back available 0, got %s", balance.Available.String())
	}
}
