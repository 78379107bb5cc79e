package store

import (
	"errors"
	"strings"
	"testing"

	"fixer-purse-ledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestIntegrityError(t *testing.T) {
	if err := IntegrityError(nil); err != nil {
		t.Errorf("Expected nil for nil report, got %v", err)
	}

	valid := &models.IntegrityReport{PurseId: "p1", IsValid: true}
	if err := IntegrityError(valid); err != nil {
		t.Errorf("Expected nil for valid report, got %v", err)
	}

	drifted := &models.IntegrityReport{
		PurseId:           "p1",
		IsValid:           false,
		PurseBalance:      decimal.NewFromInt(100),
		CalculatedBalance: decimal.NewFromInt(80),
		Difference:        decimal.NewFromInt(20),
	}
	err := IntegrityError(drifted)
	if err == nil {
		t.Fatal("Expected mismatch error for drifted report")
	}

	var mismatch *IntegrityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected *IntegrityMismatchError, got %T", err)
	}
	if mismatch.PurseId != "p1" {
		t.Errorf("Expected purse p1, got %s", mismatch.PurseId)
	}
	if !strings.Contains(err.Error(), "difference=20") {
		t.Errorf("Expected difference in message, got %q", err.Error())
	}
}

func TestWrappedSentinels(t *testing.T) {
	err := errors.Join(errors.New("context"), ErrPurseNotFound)
	if !errors.Is(err, ErrPurseNotFound) {
		t.Error("Expected wrapped ErrPurseNotFound to match")
	}
	if errors.Is(err, ErrOrderNotFound) {
		t.Error("Did not expect ErrOrderNotFound to match")
	}
}
