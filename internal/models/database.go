/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurseKind distinguishes the platform singleton from per-user purses
type PurseKind string

const (
	PurseKindPlatform PurseKind = "PLATFORM"
	PurseKindUser     PurseKind = "USER"
)

// PurseOwner identifies who a purse belongs to. The platform owner has no user id.
type PurseOwner struct {
	Kind   PurseKind
	UserId string
}

// PlatformOwner returns the owner of the single platform purse
func PlatformOwner() PurseOwner {
	return PurseOwner{Kind: PurseKindPlatform}
}

// UserOwner returns the owner of the purse belonging to userId
func UserOwner(userId string) PurseOwner {
	return PurseOwner{Kind: PurseKindUser, UserId: userId}
}

func (o PurseOwner) IsPlatform() bool {
	return o.Kind == PurseKindPlatform
}

// Purse holds money for the platform or for exactly one user (hot data)
type Purse struct {
	Id           string          `db:"id"`
	Owner        PurseOwner      `db:"-"`
	Currency     string          `db:"currency"`
	Active       bool            `db:"active"`
	Available    decimal.Decimal `db:"available"`
	Pending      decimal.Decimal `db:"pending"`
	Commission   decimal.Decimal `db:"commission"`
	TotalRevenue decimal.Decimal `db:"total_revenue"`
	Version      int64           `db:"version"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Total is available + pending + commission. TotalRevenue is a counter, not a balance.
func (p *Purse) Total() decimal.Decimal {
	return p.Available.Add(p.Pending).Add(p.Commission)
}

// Balance returns the balance components of the purse
func (p *Purse) Balance() PurseBalance {
	return PurseBalance{
		PurseId:      p.Id,
		Available:    p.Available,
		Pending:      p.Pending,
		Commission:   p.Commission,
		TotalRevenue: p.TotalRevenue,
		Total:        p.Total(),
	}
}

// BalanceDelta is a signed change applied to the balance fields of one purse
type BalanceDelta struct {
	Available    decimal.Decimal
	Pending      decimal.Decimal
	Commission   decimal.Decimal
	TotalRevenue decimal.Decimal
}

// Apply returns the purse balances after the delta, without mutating p
func (d BalanceDelta) Apply(p Purse) Purse {
	p.Available = p.Available.Add(d.Available)
	p.Pending = p.Pending.Add(d.Pending)
	p.Commission = p.Commission.Add(d.Commission)
	p.TotalRevenue = p.TotalRevenue.Add(d.TotalRevenue)
	return p
}

// Add combines two deltas aimed at the same purse
func (d BalanceDelta) Add(o BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Available:    d.Available.Add(o.Available),
		Pending:      d.Pending.Add(o.Pending),
		Commission:   d.Commission.Add(o.Commission),
		TotalRevenue: d.TotalRevenue.Add(o.TotalRevenue),
	}
}

// TransactionType enumerates every money movement the ledger records
type TransactionType string

const (
	TxPaymentReceived     TransactionType = "PAYMENT_RECEIVED"
	TxCommissionHold      TransactionType = "COMMISSION_HOLD"
	TxEscrowHold          TransactionType = "ESCROW_HOLD"
	TxCommissionToRevenue TransactionType = "COMMISSION_TO_REVENUE"
	TxPayout              TransactionType = "PAYOUT"
	TxRefundEscrow        TransactionType = "REFUND_ESCROW"
	TxRefundCommission    TransactionType = "REFUND_COMMISSION"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxPaymentReceived, TxCommissionHold, TxEscrowHold, TxCommissionToRevenue,
		TxPayout, TxRefundEscrow, TxRefundCommission:
		return true
	}
	return false
}

// TransactionSide selects the source or destination snapshot of a transaction
type TransactionSide string

const (
	SideFrom TransactionSide = "from"
	SideTo   TransactionSide = "to"
)

// PurseTransaction is an immutable ledger entry (cold data). Only the
// *BalanceAfter snapshots are written after insert, exactly once.
type PurseTransaction struct {
	Id                string              `db:"id"`
	Type              TransactionType     `db:"type"`
	Amount            decimal.Decimal     `db:"amount"`
	FromPurseId       string              `db:"from_purse_id"`
	ToPurseId         string              `db:"to_purse_id"`
	OrderId           string              `db:"order_id"`
	PaymentId         string              `db:"payment_id"`
	Description       string              `db:"description"`
	Metadata          map[string]any      `db:"metadata"`
	ActorId           string              `db:"actor_id"`
	FromBalanceBefore decimal.NullDecimal `db:"from_balance_before"`
	FromBalanceAfter  decimal.NullDecimal `db:"from_balance_after"`
	ToBalanceBefore   decimal.NullDecimal `db:"to_balance_before"`
	ToBalanceAfter    decimal.NullDecimal `db:"to_balance_after"`
	CreatedAt         time.Time           `db:"created_at"`
}

// PlatformSetting is an externally administered key/value configuration row
type PlatformSetting struct {
	Key         string    `db:"setting_key"`
	Value       string    `db:"value"`
	Description string    `db:"description"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Order is the order-management projection the ledger reads at settlement.
// PlatformFee and FixerAmount are trusted as computed by order management.
type Order struct {
	Id          string          `db:"id"`
	ClientId    string          `db:"client_id"`
	FixerId     string          `db:"fixer_id"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	PlatformFee decimal.Decimal `db:"platform_fee"`
	FixerAmount decimal.Decimal `db:"fixer_amount"`
	Status      string          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}
