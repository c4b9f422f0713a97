/*
Copyright 2024 Rahpay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rahpay

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

var adjustmentTracer = otel.Tracer("rahpay.adjustment")

// AdjustMerchantWalletBalance rewrites the disbursable balances of a
// merchant's settled transactions. A ProportionalAdjustment scales every
// balance by target/current in one statement, so the adjustment applies fully
// or not at all. An AbsoluteAdjustment sets every balance to a fixed value;
// callers today only pass zero, when offboarding a merchant.
func (l *Rahpay) AdjustMerchantWalletBalance(ctx context.Context, merchantID int64, req model.AdjustmentRequest) (int64, error) {
	ctx, span := adjustmentTracer.Start(ctx, "AdjustMerchantWalletBalance")
	defer span.End()

	if _, err := l.datasource.GetMerchantByID(ctx, merchantID); err != nil {
		span.RecordError(err)
		return 0, err
	}

	switch r := req.(type) {
	case model.ProportionalAdjustment:
		current, err := l.datasource.GetWalletBalance(ctx, merchantID)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		factor, err := model.ScaleFactor(r.Target, current)
		if err != nil {
			span.RecordError(err)
			return 0, apierror.NewAPIError(apierror.ErrInvalidState, err.Error(), nil)
		}
		rows, err := l.datasource.ScaleTransactionBalances(ctx, merchantID, factor)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		span.AddEvent("Balances scaled", trace.WithAttributes(
			attribute.Int64("merchant.id", merchantID),
			attribute.String("factor", factor.String()),
			attribute.Int64("rows", rows),
		))
		return rows, nil

	case model.AbsoluteAdjustment:
		if r.Value.Sign() < 0 {
			return 0, apierror.NewAPIError(apierror.ErrInvalidState, "balance value cannot be negative", nil)
		}
		rows, err := l.datasource.SetTransactionBalances(ctx, merchantID, r.Value)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		span.AddEvent("Balances set", trace.WithAttributes(
			attribute.Int64("merchant.id", merchantID),
			attribute.Int64("rows", rows),
		))
		return rows, nil

	default:
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unsupported adjustment request %T", req), nil)
	}
}

// SettleTransactions force-settles the given transactions in one statement:
// settlement flag on, status completed. Used by backoffice reconciliation
// when a provider's batch file confirms payments the IPN never delivered.
func (l *Rahpay) SettleTransactions(ctx context.Context, transactionIDs []string) error {
	ctx, span := adjustmentTracer.Start(ctx, "SettleTransactions")
	defer span.End()

	if len(transactionIDs) == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "transaction ids are required", nil)
	}
	if err := l.datasource.SettleTransactions(ctx, transactionIDs); err != nil {
		span.RecordError(err)
		return err
	}
	span.AddEvent("Transactions settled", trace.WithAttributes(attribute.Int("count", len(transactionIDs))))
	return nil
}

// RemoveMerchantFinanceData hard-deletes every financial record of a
// merchant: scheduled tasks, settlement reports, disbursements, transactions,
// in that order. Destructive and irreversible; exposed to administrators
// only.
func (l *Rahpay) RemoveMerchantFinanceData(ctx context.Context, merchantID int64) error {
	ctx, span := adjustmentTracer.Start(ctx, "RemoveMerchantFinanceData")
	defer span.End()

	if _, err := l.datasource.GetMerchantByID(ctx, merchantID); err != nil {
		span.RecordError(err)
		return err
	}
	if err := l.datasource.DeleteMerchantFinanceData(ctx, merchantID); err != nil {
		span.RecordError(err)
		return err
	}
	span.AddEvent("Merchant finance data removed", trace.WithAttributes(attribute.Int64("merchant.id", merchantID)))
	return nil
}
