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
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahpay/rahpay/config"
	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

var disbursementTracer = otel.Tracer("rahpay.disbursement")

// boundedCtx derives the bounded context every multi-statement financial
// mutation runs under. Exceeding the ceiling aborts the transaction and
// surfaces as a retryable internal error.
func boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 10 * time.Second
	if conf, err := config.Fetch(); err == nil && conf.Transaction.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.Transaction.TimeoutSeconds) * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// breakdownFor validates the input and computes the commission components
// under the merchant's tier.
func (l *Rahpay) breakdownFor(ctx context.Context, merchantID int64, input model.DisbursementInput) (*model.Merchant, model.CommissionBreakdown, error) {
	merchant, err := l.datasource.GetMerchantByID(ctx, merchantID)
	if err != nil {
		return nil, model.CommissionBreakdown{}, err
	}
	if merchant.Commission == nil {
		return nil, model.CommissionBreakdown{}, apierror.NewAPIError(apierror.ErrInvalidState, "Merchant has no commission tier configured", nil)
	}
	breakdown, err := merchant.Commission.Breakdown(input.Amount)
	if err != nil {
		return nil, model.CommissionBreakdown{}, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}
	return merchant, breakdown, nil
}

func disbursementFrom(merchantID int64, kind string, input model.DisbursementInput, b model.CommissionBreakdown) *model.Disbursement {
	return &model.Disbursement{
		DisbursementID:  model.GenerateUUIDWithSuffix("disb"),
		OrderID:         input.OrderID,
		MerchantID:      merchantID,
		Kind:            kind,
		Amount:          input.Amount,
		Commission:      b.Commission,
		GST:             b.GST,
		WithholdingTax:  b.WithholdingTax,
		MerchantAmount:  b.MerchantAmount,
		Provider:        input.Provider,
		ProviderAccount: input.ProviderAccount,
	}
}

// CreateTopup records an inbound top-up and credits the merchant's
// balance-to-disburse with the net amount in one bounded transaction.
func (l *Rahpay) CreateTopup(ctx context.Context, merchantID int64, input model.DisbursementInput) (*model.Disbursement, error) {
	ctx, span := disbursementTracer.Start(ctx, "CreateTopup")
	defer span.End()

	merchant, breakdown, err := l.breakdownFor(ctx, merchantID, input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	disb := disbursementFrom(merchantID, model.DisbursementKindTopup, input, breakdown)
	disb.Status = model.DisbursementApproved

	txCtx, cancel := boundedCtx(ctx)
	defer cancel()
	created, err := l.datasource.ApplyDisbursementFlow(txCtx, disb, nil, breakdown.MerchantAmount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.notifyDisbursement(merchant, EventDisbursementCreated, created)
	span.AddEvent("Topup created", trace.WithAttributes(attribute.String("disbursement.id", created.DisbursementID)))
	return created, nil
}

// CreateDisbursementDispute records a dispute against settled funds and
// debits the merchant's wallet by the disputed amount in one bounded
// transaction. The debit is proportional across the settled transaction
// balances.
func (l *Rahpay) CreateDisbursementDispute(ctx context.Context, merchantID int64, input model.DisbursementInput) (*model.Disbursement, error) {
	ctx, span := disbursementTracer.Start(ctx, "CreateDisbursementDispute")
	defer span.End()

	merchant, breakdown, err := l.breakdownFor(ctx, merchantID, input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	factor, err := l.walletDebitFactor(ctx, merchantID, input.Amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	disb := disbursementFrom(merchantID, model.DisbursementKindDispute, input, breakdown)
	disb.Status = model.DisbursementApproved

	txCtx, cancel := boundedCtx(ctx)
	defer cancel()
	created, err := l.datasource.ApplyDisbursementFlow(txCtx, disb, &factor, decimal.Zero)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.notifyDisbursement(merchant, EventDisbursementCreated, created)
	span.AddEvent("Dispute created", trace.WithAttributes(attribute.String("disbursement.id", created.DisbursementID)))
	return created, nil
}

// CreateDisbursementRequest records a merchant payout request: the requested
// amount leaves the wallet (proportional debit) and moves onto
// balance-to-disburse as a hold awaiting backoffice review, in one bounded
// transaction. The request must fit inside the disbursable balance.
func (l *Rahpay) CreateDisbursementRequest(ctx context.Context, merchantID int64, input model.DisbursementInput) (*model.Disbursement, error) {
	ctx, span := disbursementTracer.Start(ctx, "CreateDisbursementRequest")
	defer span.End()

	merchant, breakdown, err := l.breakdownFor(ctx, merchantID, input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	disbursable, err := l.datasource.GetDisbursableBalance(ctx, merchantID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if input.Amount.GreaterThan(disbursable) {
		err := apierror.NewAPIError(apierror.ErrInvalidState, "Requested amount exceeds disbursable balance", nil)
		span.RecordError(err)
		return nil, err
	}

	factor, err := l.walletDebitFactor(ctx, merchantID, input.Amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	disb := disbursementFrom(merchantID, model.DisbursementKindRequest, input, breakdown)
	disb.Status = model.DisbursementPending

	txCtx, cancel := boundedCtx(ctx)
	defer cancel()
	created, err := l.datasource.ApplyDisbursementFlow(txCtx, disb, &factor, input.Amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.notifyDisbursement(merchant, EventDisbursementCreated, created)
	span.AddEvent("Disbursement request created", trace.WithAttributes(
		attribute.String("disbursement.id", created.DisbursementID),
		attribute.String("amount", input.Amount.String()),
	))
	return created, nil
}

// ApproveDisbursementRequest finalizes a pending payout request. The wallet
// debit and balance-to-disburse hold taken at creation stand; approval is the
// status transition that releases the hold to payout.
func (l *Rahpay) ApproveDisbursementRequest(ctx context.Context, disbursementID string) error {
	ctx, span := disbursementTracer.Start(ctx, "ApproveDisbursementRequest")
	defer span.End()

	disb, err := l.requestForResolution(ctx, disbursementID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	txCtx, cancel := boundedCtx(ctx)
	defer cancel()
	if err := l.datasource.ResolveDisbursementRequest(txCtx, disbursementID, model.DisbursementApproved, nil, decimal.Zero); err != nil {
		span.RecordError(err)
		return err
	}

	disb.Status = model.DisbursementApproved
	if merchant, merr := l.datasource.GetMerchantByID(ctx, disb.MerchantID); merr == nil {
		l.notifyDisbursement(merchant, EventDisbursementUpdated, disb)
	}
	span.AddEvent("Disbursement approved", trace.WithAttributes(attribute.String("disbursement.id", disbursementID)))
	return nil
}

// RejectDisbursementRequest reverses a pending payout request: the requested
// amount returns to the wallet and the balance-to-disburse hold is released,
// in the same transaction as the status change.
func (l *Rahpay) RejectDisbursementRequest(ctx context.Context, disbursementID string) error {
	ctx, span := disbursementTracer.Start(ctx, "RejectDisbursementRequest")
	defer span.End()

	disb, err := l.requestForResolution(ctx, disbursementID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	factor, err := l.walletCreditFactor(ctx, disb.MerchantID, disb.Amount)
	if err != nil {
		span.RecordError(err)
		return err
	}

	txCtx, cancel := boundedCtx(ctx)
	defer cancel()
	if err := l.datasource.ResolveDisbursementRequest(txCtx, disbursementID, model.DisbursementRejected, factor, disb.Amount.Neg()); err != nil {
		span.RecordError(err)
		return err
	}

	disb.Status = model.DisbursementRejected
	if merchant, merr := l.datasource.GetMerchantByID(ctx, disb.MerchantID); merr == nil {
		l.notifyDisbursement(merchant, EventDisbursementUpdated, disb)
	}
	span.AddEvent("Disbursement rejected", trace.WithAttributes(attribute.String("disbursement.id", disbursementID)))
	return nil
}

// GetDisbursement reads one disbursement by id.
func (l *Rahpay) GetDisbursement(ctx context.Context, disbursementID string) (*model.Disbursement, error) {
	return l.datasource.GetDisbursement(ctx, disbursementID)
}

func (l *Rahpay) requestForResolution(ctx context.Context, disbursementID string) (*model.Disbursement, error) {
	disb, err := l.datasource.GetDisbursement(ctx, disbursementID)
	if err != nil {
		return nil, err
	}
	if disb.Kind != model.DisbursementKindRequest {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, "Only disbursement requests can be resolved", nil)
	}
	if disb.Status != model.DisbursementPending {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Disbursement request is already resolved", nil)
	}
	return disb, nil
}

// walletDebitFactor computes the scale factor that removes amount from the
// merchant's wallet.
func (l *Rahpay) walletDebitFactor(ctx context.Context, merchantID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	current, err := l.datasource.GetWalletBalance(ctx, merchantID)
	if err != nil {
		return decimal.Zero, err
	}
	target := current.Sub(amount)
	if target.Sign() < 0 {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInvalidState, "Amount exceeds wallet balance", nil)
	}
	factor, err := model.ScaleFactor(target, current)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInvalidState, err.Error(), nil)
	}
	return factor, nil
}

// walletCreditFactor computes the scale factor that returns amount to the
// merchant's wallet. A fully drained wallet cannot be scaled back up; the
// caller gets no factor and the credit lands on balance-to-disburse alone.
func (l *Rahpay) walletCreditFactor(ctx context.Context, merchantID int64, amount decimal.Decimal) (*decimal.Decimal, error) {
	current, err := l.datasource.GetWalletBalance(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if current.IsZero() {
		logrus.Warnf("merchant %d wallet is empty, skipping balance restore of %s", merchantID, amount.String())
		return nil, nil
	}
	factor, err := model.ScaleFactor(current.Add(amount), current)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, err.Error(), nil)
	}
	return &factor, nil
}

func (l *Rahpay) notifyDisbursement(merchant *model.Merchant, event string, disb *model.Disbursement) {
	if merchant == nil || merchant.WebhookURL == "" {
		return
	}
	if err := l.SendWebhook(NewWebhook{Event: event, URL: merchant.WebhookURL, Payload: disb}); err != nil {
		logrus.Errorf("failed to enqueue disbursement webhook for %s: %v", disb.DisbursementID, err)
	}
}
