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

package database

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

// GetActiveLimitPolicies loads the active limit policies for a merchant and
// provider. An empty result means no limits are configured and reservations
// trivially succeed.
func (d Datasource) GetActiveLimitPolicies(ctx context.Context, merchantID int64, provider model.Provider) ([]model.MerchantLimitPolicy, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT policy_id, merchant_id, provider, period, max_amount, max_txn, active, timezone, week_start_dow
		FROM merchant_limit_policies
		WHERE merchant_id = $1 AND provider = $2 AND active = TRUE
	`, merchantID, provider)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load limit policies", err)
	}
	defer rows.Close()

	var policies []model.MerchantLimitPolicy
	for rows.Next() {
		var policy model.MerchantLimitPolicy
		var weekStartDow int
		var maxAmount decimal.NullDecimal
		var maxTxn sql.NullInt64
		err := rows.Scan(&policy.PolicyID, &policy.MerchantID, &policy.Provider, &policy.Period, &maxAmount, &maxTxn, &policy.Active, &policy.Timezone, &weekStartDow)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan limit policy", err)
		}
		if maxAmount.Valid {
			policy.MaxAmount = &maxAmount.Decimal
		}
		if maxTxn.Valid {
			policy.MaxTxn = &maxTxn.Int64
		}
		policy.WeekStartDow = time.Weekday(weekStartDow)
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read limit policies", err)
	}
	return policies, nil
}

// GetPendingReservationIDs returns the ids of PENDING reservations already
// taken for a merchant transaction id. Used as the idempotency check for
// repeated reservation attempts of the same charge.
func (d Datasource) GetPendingReservationIDs(ctx context.Context, merchantTxnID string) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT reservation_id FROM limit_reservations
		WHERE merchant_txn_id = $1 AND status = 'PENDING'
	`, merchantTxnID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load reservations", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reservation id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read reservations", err)
	}
	return ids, nil
}

// ReserveLimits atomically checks and reserves capacity against every given
// policy window, inside a single serializable transaction. Per window it
// upserts the usage row, then performs one conditional increment that only
// takes effect when the post-increment usage stays within the policy's caps.
// A conditional update that affects zero rows means the limit would be
// breached: the whole transaction rolls back, leaving no partial
// reservations, and the failing period is reported via LimitExceeded.
//
// The conditional increment is the sole mechanism keeping two concurrent
// reservations from both slipping past the edge of a cap; it must stay a
// single compare-and-swap style statement.
//
// When the request carries a merchant transaction id, existing PENDING
// reservations for that id are re-read inside the transaction and returned
// as-is, so two concurrent attempts for the same charge cannot both reserve.
//
// Parameters:
// - ctx: The context bounding the transaction.
// - req: The reservation request (merchant, provider, amount, idempotency key).
// - windows: The policy windows to reserve against, one per active period.
//
// Returns:
// - []string: One reservation id per window, all PENDING.
// - error: LimitExceeded carrying the failing period, Internal on store failures.
func (d Datasource) ReserveLimits(ctx context.Context, req model.ReservationRequest, windows []model.PolicyWindow) ([]string, error) {
	ctx, span := otel.Tracer("rahpay.limits").Start(ctx, "Reserving limit capacity")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if req.MerchantTxnID != "" {
		existing, err := pendingReservationIDsTx(ctx, tx, req.MerchantTxnID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return existing, nil
		}
	}

	reservationIDs := make([]string, 0, len(windows))
	now := time.Now()

	for _, w := range windows {
		policy := w.Policy

		_, err = tx.ExecContext(ctx, `
			INSERT INTO merchant_limit_usage (merchant_id, provider, period, window_start, amount_used, txn_count)
			VALUES ($1, $2, $3, $4, 0, 0)
			ON CONFLICT (merchant_id, provider, period, window_start) DO NOTHING
		`, req.MerchantID, req.Provider, policy.Period, w.WindowStart)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert limit usage", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE merchant_limit_usage
			SET amount_used = amount_used + $5, txn_count = txn_count + 1
			WHERE merchant_id = $1 AND provider = $2 AND period = $3 AND window_start = $4
			  AND ($6::numeric IS NULL OR amount_used + $5 <= $6)
			  AND ($7::bigint IS NULL OR txn_count + 1 <= $7)
		`, req.MerchantID, req.Provider, policy.Period, w.WindowStart, req.Amount, policy.MaxAmount, policy.MaxTxn)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to increment limit usage", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rowsAffected == 0 {
			// Limit would be breached; abort for all periods.
			return nil, apierror.NewLimitExceededError(string(policy.Period))
		}

		reservationID := model.GenerateUUIDWithSuffix("res")
		_, err = tx.ExecContext(ctx, `
			INSERT INTO limit_reservations (reservation_id, merchant_id, provider, period, window_start, amount, merchant_txn_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', $8, $8)
		`, reservationID, req.MerchantID, req.Provider, policy.Period, w.WindowStart, req.Amount, req.MerchantTxnID, now)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert reservation", err)
		}
		reservationIDs = append(reservationIDs, reservationID)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return reservationIDs, nil
}

func pendingReservationIDsTx(ctx context.Context, tx *sql.Tx, merchantTxnID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT reservation_id FROM limit_reservations
		WHERE merchant_txn_id = $1 AND status = 'PENDING'
	`, merchantTxnID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load reservations", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reservation id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read reservations", err)
	}
	return ids, nil
}

// CommitReservations finalizes PENDING reservations. Ids that are already
// COMMITTED or CANCELED are left untouched, which makes the call idempotent.
func (d Datasource) CommitReservations(ctx context.Context, reservationIDs []string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE limit_reservations
		SET status = 'COMMITTED', updated_at = $2
		WHERE reservation_id = ANY($1) AND status = 'PENDING'
	`, pq.Array(reservationIDs), time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit reservations", err)
	}
	return nil
}

// CancelReservations rolls PENDING reservations back and returns their
// capacity to the usage windows. The decrement floors at zero so concurrent
// cancellations can never drive usage negative; non-PENDING ids are skipped.
func (d Datasource) CancelReservations(ctx context.Context, reservationIDs []string) error {
	ctx, span := otel.Tracer("rahpay.limits").Start(ctx, "Canceling reservations")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	rows, err := tx.QueryContext(ctx, `
		UPDATE limit_reservations
		SET status = 'CANCELED', updated_at = $2
		WHERE reservation_id = ANY($1) AND status = 'PENDING'
		RETURNING merchant_id, provider, period, window_start, amount
	`, pq.Array(reservationIDs), time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to cancel reservations", err)
	}

	var canceled []model.LimitReservation
	for rows.Next() {
		var r model.LimitReservation
		if err := rows.Scan(&r.MerchantID, &r.Provider, &r.Period, &r.WindowStart, &r.Amount); err != nil {
			rows.Close()
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan canceled reservation", err)
		}
		canceled = append(canceled, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read canceled reservations", err)
	}

	for _, r := range canceled {
		_, err = tx.ExecContext(ctx, `
			UPDATE merchant_limit_usage
			SET amount_used = GREATEST(amount_used - $5, 0), txn_count = GREATEST(txn_count - 1, 0)
			WHERE merchant_id = $1 AND provider = $2 AND period = $3 AND window_start = $4
		`, r.MerchantID, r.Provider, r.Period, r.WindowStart, r.Amount)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release limit usage", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// GetLimitUsage loads one usage window. Missing windows read as zero usage.
func (d Datasource) GetLimitUsage(ctx context.Context, merchantID int64, provider model.Provider, period model.LimitPeriod, windowStart time.Time) (*model.MerchantLimitUsage, error) {
	usage := &model.MerchantLimitUsage{
		MerchantID:  merchantID,
		Provider:    provider,
		Period:      period,
		WindowStart: windowStart,
	}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT amount_used, txn_count FROM merchant_limit_usage
		WHERE merchant_id = $1 AND provider = $2 AND period = $3 AND window_start = $4
	`, merchantID, provider, period, windowStart).Scan(&usage.AmountUsed, &usage.TxnCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return usage, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load limit usage", err)
	}
	return usage, nil
}
