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
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"fixer-purse-ledger/internal/common"
	"fixer-purse-ledger/internal/config"
	"fixer-purse-ledger/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type flags struct {
	action    string
	orderId   string
	clientId  string
	fixerId   string
	paymentId string
	actorId   string
	amount    string
	fee       string
}

func parseAmount(name, raw string) decimal.Decimal {
	if raw == "" {
		zap.L().Fatal("Missing required amount", zap.String("flag", name))
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		zap.L().Fatal("Invalid amount", zap.String("flag", name), zap.String("value", raw), zap.Error(err))
	}
	return amount
}

// registerOrder stores the order amounts the payout and refund workflows read
func registerOrder(ctx context.Context, services *common.Services, f flags) any {
	total := parseAmount("amount", f.amount)
	fee := parseAmount("fee", f.fee)

	order := models.Order{
		Id:          f.orderId,
		ClientId:    f.clientId,
		FixerId:     f.fixerId,
		TotalAmount: total,
		PlatformFee: fee,
		FixerAmount: total.Sub(fee),
		Status:      "ACCEPTED",
	}
	if err := services.DbService.UpsertOrder(ctx, order); err != nil {
		zap.L().Fatal("Failed to register order", zap.String("order_id", f.orderId), zap.Error(err))
	}
	return order
}

func run(ctx context.Context, services *common.Services, f flags) (any, error) {
	ledger := services.LedgerService
	switch f.action {
	case "order":
		return registerOrder(ctx, services, f), nil
	case "payment":
		return ledger.RecordPaymentReceived(ctx, models.PaymentReceivedRequest{
			OrderId:     f.orderId,
			PaymentId:   f.paymentId,
			TotalAmount: parseAmount("amount", f.amount),
			ActorId:     f.actorId,
		})
	case "payout":
		return ledger.ReleasePayout(ctx, models.PayoutRequest{
			OrderId: f.orderId,
			FixerId: f.fixerId,
			ActorId: f.actorId,
		})
	case "refund":
		return ledger.ProcessFullRefund(ctx, models.RefundRequest{
			OrderId:  f.orderId,
			ClientId: f.clientId,
			ActorId:  f.actorId,
		})
	default:
		return nil, fmt.Errorf("unknown action %q (expected order, payment, payout or refund)", f.action)
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	var f flags
	flag.StringVar(&f.action, "action", "", "Workflow to run: order, payment, payout or refund")
	flag.StringVar(&f.orderId, "order", "", "Order id")
	flag.StringVar(&f.clientId, "client", "", "Client user id (order, refund)")
	flag.StringVar(&f.fixerId, "fixer", "", "Fixer user id (order, payout)")
	flag.StringVar(&f.paymentId, "payment", "", "External payment id (payment)")
	flag.StringVar(&f.actorId, "actor", "", "Operator recorded on the transactions")
	flag.StringVar(&f.amount, "amount", "", "Order or payment total (order, payment)")
	flag.StringVar(&f.fee, "fee", "", "Platform fee agreed on the order (order)")
	flag.Parse()

	if f.action == "" || f.orderId == "" {
		fmt.Fprintln(os.Stderr, "usage: escrow -action order|payment|payout|refund -order <id> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	zap.L().Info("Running escrow action",
		zap.String("action", f.action),
		zap.String("order_id", f.orderId))

	result, err := run(ctx, services, f)
	if err != nil {
		zap.L().Error("Escrow action failed",
			zap.String("action", f.action),
			zap.String("order_id", f.orderId),
			zap.Error(err))
		services.Close()
		os.Exit(1)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		zap.L().Error("Error marshaling result to JSON", zap.Error(err))
		return
	}
	fmt.Println(string(output))
}
