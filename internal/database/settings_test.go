package database

import (
	"context"
	"errors"
	"testing"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
)

func TestSettings_UpsertAndGet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.GetSetting(ctx, "platformCommissionPercentage"); !errors.Is(err, store.ErrSettingNotFound) {
		t.Errorf("Expected ErrSettingNotFound, got %v", err)
	}

	params := store.UpsertSettingParams{Key: "platformCommissionPercentage", Value: "0.15", Description: "Commission"}
	if err := service.UpsertSetting(ctx, params); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	params.Value = "0.25"
	if err := service.UpsertSetting(ctx, params); err != nil {
		t.Fatalf("Second UpsertSetting failed: %v", err)
	}

	setting, err := service.GetSetting(ctx, "platformCommissionPercentage")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if setting.Value != "0.25" || setting.Description != "Commission" {
		t.Errorf("Unexpected setting %+v", setting)
	}

	if err := service.UpsertSetting(ctx, store.UpsertSettingParams{}); err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestOrders_UpsertAndGet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.GetOrder(ctx, "order1"); !errors.Is(err, store.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}

	order := models.Order{
		Id:          "order1",
		ClientId:    "client1",
		FixerId:     "fixer1",
		TotalAmount: decimal.NewFromInt(100),
		PlatformFee: decimal.NewFromInt(20),
		FixerAmount: decimal.NewFromInt(80),
		Status:      "PAID",
	}
	if err := service.UpsertOrder(ctx, order); err != nil {
		t.Fatalf("UpsertOrder failed: %v", err)
	}

	stored, err := service.GetOrder(ctx, "order1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if stored.FixerId != "fixer1" || !stored.PlatformFee.Equal(order.PlatformFee) || !stored.FixerAmount.Equal(order.FixerAmount) {
		t.Errorf("Unexpected order %+v", stored)
	}

	order.Status = "COMPLETED"
	if err := service.UpsertOrder(ctx, order); err != nil {
		t.Fatalf("Second UpsertOrder failed: %v", err)
	}
	stored, _ = service.GetOrder(ctx, "order1")
	if stored.Status != "COMPLETED" {
		t.Errorf("Expected status COMPLETED, got %s", stored.Status)
	}

	order.PlatformFee = decimal.NewFromInt(-1)
	if err := service.UpsertOrder(ctx, order); !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}
