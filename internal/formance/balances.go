package formance

import (
	"context"
	"fmt"
	"math/big"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PurseTotal returns available + pending + commission of a purse as the mirror sees it
func (s *Service) PurseTotal(ctx context.Context, purseId string) (decimal.Decimal, error) {
	fAsset := formanceAsset(s.currency, s.scale)

	total := decimal.Zero
	for _, bucket := range []string{bucketAvailable, bucketPending, bucketCommission} {
		vols, err := s.getAccountVolumes(ctx, purseAccount(purseId, bucket))
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(bigIntToDecimal(volumeBalance(vols, fAsset), s.scale))
	}

	zap.L().Debug("Mirrored purse total",
		zap.String("purse_id", purseId),
		zap.String("total", total.String()))
	return total, nil
}

// getAccountVolumes fetches volumes for a single account; an account never posted to has none
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account volumes for %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, scale int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -scale)
}
