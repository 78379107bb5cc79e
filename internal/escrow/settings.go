package escrow

import (
	"context"
	"errors"

	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SettingCommissionPercentage       = "platformCommissionPercentage"
	SettingCommissionRefundPercentage = "commissionRefundPercentage"
)

var (
	DefaultCommissionPercentage       = decimal.RequireFromString("0.20")
	DefaultCommissionRefundPercentage = decimal.RequireFromString("0.50")
)

// GetCommissionPercentage returns the platform commission as a fraction of the order total
func GetCommissionPercentage(ctx context.Context, settings store.SettingsReader) decimal.Decimal {
	return resolveFraction(ctx, settings, SettingCommissionPercentage, DefaultCommissionPercentage)
}

// GetCommissionRefundPercentage returns the share of commission given back on a full refund
func GetCommissionRefundPercentage(ctx context.Context, settings store.SettingsReader) decimal.Decimal {
	return resolveFraction(ctx, settings, SettingCommissionRefundPercentage, DefaultCommissionRefundPercentage)
}

// resolveFraction never fails: a missing, unreadable or out-of-range value yields the default
func resolveFraction(ctx context.Context, settings store.SettingsReader, key string, fallback decimal.Decimal) decimal.Decimal {
	setting, err := settings.GetSetting(ctx, key)
	if errors.Is(err, store.ErrSettingNotFound) {
		zap.L().Debug("Setting not configured, using default",
			zap.String("key", key),
			zap.String("default", fallback.String()))
		return fallback
	}
	if err != nil {
		zap.L().Warn("Failed to read setting, using default",
			zap.String("key", key),
			zap.String("default", fallback.String()),
			zap.Error(err))
		return fallback
	}

	value, err := decimal.NewFromString(setting.Value)
	if err != nil {
		zap.L().Warn("Setting is not a decimal fraction, using default",
			zap.String("key", key),
			zap.String("value", setting.Value),
			zap.String("default", fallback.String()))
		return fallback
	}

	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(1)) {
		zap.L().Warn("Setting out of range [0,1], using default",
			zap.String("key", key),
			zap.String("value", setting.Value),
			zap.String("default", fallback.String()),
			zap.Error(store.ErrSettingOutOfRange))
		return fallback
	}

	return value
}
