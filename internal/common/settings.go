package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fixer-purse-ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type SettingSeed struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

type SettingsSeedFile struct {
	Settings []SettingSeed `yaml:"settings"`
}

// LoadSettingsSeed reads platform settings from a YAML file, relative paths
// resolved against the working directory
func LoadSettingsSeed(settingsFile string) ([]SettingSeed, error) {
	var settingsPath string
	if filepath.IsAbs(settingsFile) {
		settingsPath = settingsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		settingsPath = filepath.Join(wd, settingsFile)
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", settingsFile, err)
	}

	var seed SettingsSeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", settingsFile, err)
	}

	seen := make(map[string]bool, len(seed.Settings))
	for i, setting := range seed.Settings {
		if setting.Key == "" {
			return nil, fmt.Errorf("setting at index %d missing key", i)
		}
		if setting.Value == "" {
			return nil, fmt.Errorf("setting %s missing value", setting.Key)
		}
		if seen[setting.Key] {
			return nil, fmt.Errorf("setting %s defined more than once", setting.Key)
		}
		seen[setting.Key] = true
	}

	return seed.Settings, nil
}

// ApplySettingsSeed upserts every seeded setting. Percentage values outside
// [0, 1] are still written; the resolver falls back to defaults for them.
func ApplySettingsSeed(ctx context.Context, ledger store.LedgerStore, seeds []SettingSeed) error {
	for _, seed := range seeds {
		if value, err := decimal.NewFromString(seed.Value); err == nil &&
			(value.IsNegative() || value.GreaterThan(decimal.NewFromInt(1))) {
			zap.L().Warn("Seeded setting is outside [0, 1]",
				zap.String("key", seed.Key),
				zap.String("value", seed.Value))
		}

		err := ledger.UpsertSetting(ctx, store.UpsertSettingParams{
			Key:         seed.Key,
			Value:       seed.Value,
			Description: seed.Description,
		})
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", seed.Key, err)
		}
		zap.L().Info("Seeded platform setting",
			zap.String("key", seed.Key),
			zap.String("value", seed.Value))
	}
	return nil
}
