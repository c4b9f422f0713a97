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

var balanceTracer = otel.Tracer("rahpay.balances")

// GetWalletBalance computes a merchant's settled wallet balance: the sum of
// settled amounts over transactions whose settlement flag is set and whose
// remaining balance is positive. A merchant with no qualifying transactions
// has a zero balance, not an error.
func (l *Rahpay) GetWalletBalance(ctx context.Context, merchantID int64) (*model.WalletBalance, error) {
	ctx, span := balanceTracer.Start(ctx, "GetWalletBalance")
	defer span.End()

	if _, err := l.datasource.GetMerchantByID(ctx, merchantID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	balance, err := l.datasource.GetWalletBalance(ctx, merchantID)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute wallet balance", err)
	}

	span.AddEvent("Wallet balance computed", trace.WithAttributes(
		attribute.Int64("merchant.id", merchantID),
		attribute.String("wallet.balance", balance.String()),
	))
	return &model.WalletBalance{MerchantID: merchantID, WalletBalance: balance}, nil
}

// GetDisbursementBalance reports what the merchant can still request for
// payout. Request creation already debits the wallet, so the disbursable
// figure is the settled wallet balance as stored; the total of pending
// requests is reported alongside it, not subtracted again.
func (l *Rahpay) GetDisbursementBalance(ctx context.Context, merchantID int64) (*model.DisbursementBalance, error) {
	ctx, span := balanceTracer.Start(ctx, "GetDisbursementBalance")
	defer span.End()

	if _, err := l.datasource.GetMerchantByID(ctx, merchantID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	disbursable, err := l.datasource.GetDisbursableBalance(ctx, merchantID)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute disbursable balance", err)
	}
	pending, err := l.datasource.GetPendingDisbursementTotal(ctx, merchantID)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute pending disbursement total", err)
	}
	span.AddEvent(fmt.Sprintf("Disbursable balance for merchant %d: %s", merchantID, disbursable.String()))
	return &model.DisbursementBalance{
		MerchantID:          merchantID,
		DisbursableBalance:  disbursable,
		PendingDisbursement: pending,
	}, nil
}
