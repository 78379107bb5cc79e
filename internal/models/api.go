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
	"github.com/shopspring/decimal"
)

// PurseBalance is the balance view of a purse
type PurseBalance struct {
	PurseId      string          `json:"purse_id"`
	Available    decimal.Decimal `json:"available"`
	Pending      decimal.Decimal `json:"pending"`
	Commission   decimal.Decimal `json:"commission"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Total        decimal.Decimal `json:"total"`
}

// IntegrityReport compares a purse's stored total with its transaction history
type IntegrityReport struct {
	PurseId           string          `json:"purse_id"`
	IsValid           bool            `json:"is_valid"`
	PurseBalance      decimal.Decimal `json:"purse_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
}

// PaymentReceivedResult is returned by the payment-received workflow
type PaymentReceivedResult struct {
	PaymentTx    *PurseTransaction `json:"payment_tx"`
	CommissionTx *PurseTransaction `json:"commission_tx,omitempty"`
	EscrowTx     *PurseTransaction `json:"escrow_tx,omitempty"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Commission   decimal.Decimal   `json:"commission"`
	EscrowAmount decimal.Decimal   `json:"escrow_amount"`
}

// Transactions lists the recorded transactions in posting order
func (r *PaymentReceivedResult) Transactions() []PurseTransaction {
	return collect(r.PaymentTx, r.CommissionTx, r.EscrowTx)
}

// PayoutResult is returned by the payout workflow
type PayoutResult struct {
	CommissionTx *PurseTransaction `json:"commission_tx,omitempty"`
	PayoutTx     *PurseTransaction `json:"payout_tx,omitempty"`
	Commission   decimal.Decimal   `json:"commission"`
	FixerAmount  decimal.Decimal   `json:"fixer_amount"`
}

func (r *PayoutResult) Transactions() []PurseTransaction {
	return collect(r.CommissionTx, r.PayoutTx)
}

// RefundResult is returned by the full-refund workflow
type RefundResult struct {
	TotalRefund        decimal.Decimal   `json:"total_refund"`
	EscrowRefund       decimal.Decimal   `json:"escrow_refund"`
	CommissionRefund   decimal.Decimal   `json:"commission_refund"`
	PlatformRetained   decimal.Decimal   `json:"platform_retained"`
	EscrowTx           *PurseTransaction `json:"escrow_tx,omitempty"`
	CommissionRefundTx *PurseTransaction `json:"commission_refund_tx,omitempty"`
	RevenueTx          *PurseTransaction `json:"revenue_tx,omitempty"`
}

func (r *RefundResult) Transactions() []PurseTransaction {
	return collect(r.EscrowTx, r.CommissionRefundTx, r.RevenueTx)
}

func collect(txs ...*PurseTransaction) []PurseTransaction {
	out := make([]PurseTransaction, 0, len(txs))
	for _, tx := range txs {
		if tx != nil {
			out = append(out, *tx)
		}
	}
	return out
}

// PaymentReceivedRequest is submitted by the payment webhook once a client payment clears
type PaymentReceivedRequest struct {
	OrderId     string          `json:"order_id" validate:"required,max=128"`
	PaymentId   string          `json:"payment_id" validate:"required,max=128"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ActorId     string          `json:"actor_id,omitempty" validate:"omitempty,max=128"`
}

// PayoutRequest is submitted by order management when an order is approved for payout
type PayoutRequest struct {
	OrderId string `json:"order_id" validate:"required,max=128"`
	FixerId string `json:"fixer_id" validate:"required,max=128"`
	ActorId string `json:"actor_id,omitempty" validate:"omitempty,max=128"`
}

// RefundRequest is submitted when a paid order is fully cancelled
type RefundRequest struct {
	OrderId  string `json:"order_id" validate:"required,max=128"`
	ClientId string `json:"client_id" validate:"required,max=128"`
	ActorId  string `json:"actor_id,omitempty" validate:"omitempty,max=128"`
}

// PurseHistoryRequest pages through the transactions touching one purse
type PurseHistoryRequest struct {
	PurseId string `json:"purse_id" validate:"required"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}
