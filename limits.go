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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

var limitTracer = otel.Tracer("rahpay.limits")

// ReserveLimits takes tentative holds against every active limit policy of
// the merchant and provider for the prospective charge. All holds are taken
// inside one serializable transaction with conditional increments, so two
// concurrent reservations cannot both land when only one fits; a breached
// policy rolls everything back and surfaces LimitExceeded with the failing
// period. No active policies means no holds and an ok result.
func (l *Rahpay) ReserveLimits(ctx context.Context, req model.ReservationRequest) (*model.ReservationResult, error) {
	ctx, span := limitTracer.Start(ctx, "ReserveLimits")
	defer span.End()

	if req.Amount.Sign() <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "reservation amount must be greater than zero", nil)
	}

	// A retried charge with the same merchant transaction id reuses the
	// holds it already took instead of consuming capacity twice. This is a
	// fast path; the store re-checks inside the reservation transaction so
	// two concurrent attempts cannot both reserve.
	if req.MerchantTxnID != "" {
		existing, err := l.datasource.GetPendingReservationIDs(ctx, req.MerchantTxnID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if len(existing) > 0 {
			span.AddEvent("Reusing pending reservations", trace.WithAttributes(
				attribute.String("merchant.txn_id", req.MerchantTxnID),
				attribute.Int("count", len(existing)),
			))
			return &model.ReservationResult{OK: true, ReservationIDs: existing}, nil
		}
	}

	policies, err := l.datasource.GetActiveLimitPolicies(ctx, req.MerchantID, req.Provider)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(policies) == 0 {
		span.AddEvent("No active limit policies")
		return &model.ReservationResult{OK: true}, nil
	}

	now := time.Now()
	windows := make([]model.PolicyWindow, 0, len(policies))
	for _, policy := range policies {
		start, end, err := policy.Window(now)
		if err != nil {
			span.RecordError(err)
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, err.Error(), nil)
		}
		windows = append(windows, model.PolicyWindow{Policy: policy, WindowStart: start, WindowEnd: end})
	}

	ids, err := l.datasource.ReserveLimits(ctx, req, windows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Limits reserved", trace.WithAttributes(
		attribute.Int64("merchant.id", req.MerchantID),
		attribute.Int("reservations", len(ids)),
	))
	return &model.ReservationResult{OK: true, ReservationIDs: ids}, nil
}

// CommitReservations finalizes pending holds after the charge succeeded.
// Already committed or canceled ids are left untouched.
func (l *Rahpay) CommitReservations(ctx context.Context, reservationIDs []string) error {
	ctx, span := limitTracer.Start(ctx, "CommitReservations")
	defer span.End()

	if len(reservationIDs) == 0 {
		return nil
	}
	if err := l.datasource.CommitReservations(ctx, reservationIDs); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// CancelReservations releases pending holds after the charge failed,
// returning their amounts to the usage windows. Idempotent: a second cancel
// of the same ids finds no pending rows and decrements nothing.
func (l *Rahpay) CancelReservations(ctx context.Context, reservationIDs []string) error {
	ctx, span := limitTracer.Start(ctx, "CancelReservations")
	defer span.End()

	if len(reservationIDs) == 0 {
		return nil
	}
	if err := l.datasource.CancelReservations(ctx, reservationIDs); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// GetLimitUsage reads the current usage of one policy window. A window with
// no usage row yet reads as zero.
func (l *Rahpay) GetLimitUsage(ctx context.Context, merchantID int64, provider model.Provider, period model.LimitPeriod, at time.Time) (*model.MerchantLimitUsage, error) {
	ctx, span := limitTracer.Start(ctx, "GetLimitUsage")
	defer span.End()

	policies, err := l.datasource.GetActiveLimitPolicies(ctx, merchantID, provider)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, policy := range policies {
		if policy.Period != period {
			continue
		}
		start, _, err := policy.Window(at)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, err.Error(), nil)
		}
		return l.datasource.GetLimitUsage(ctx, merchantID, provider, period, start)
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "No active policy for the requested period", nil)
}
