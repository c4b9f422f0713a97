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
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

// CreateDisbursement persists one disbursement record.
func (d Datasource) CreateDisbursement(ctx context.Context, disb *model.Disbursement) (*model.Disbursement, error) {
	if disb.DisbursementID == "" {
		disb.DisbursementID = model.GenerateUUIDWithSuffix("disb")
	}
	if disb.Status == "" {
		disb.Status = model.DisbursementPending
	}
	now := time.Now()
	disb.CreatedAt = now
	disb.UpdatedAt = now

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO disbursements (disbursement_id, order_id, merchant_id, kind, amount, commission, gst, withholding_tax, merchant_amount, provider, provider_account, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, disb.DisbursementID, disb.OrderID, disb.MerchantID, disb.Kind, disb.Amount, disb.Commission, disb.GST, disb.WithholdingTax, disb.MerchantAmount, disb.Provider, disb.ProviderAccount, disb.Status, disb.CreatedAt, disb.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Disbursement with ID '%s' already exists", disb.DisbursementID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create disbursement", err)
	}
	return disb, nil
}

// GetDisbursement retrieves one disbursement by id.
func (d Datasource) GetDisbursement(ctx context.Context, id string) (*model.Disbursement, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT disbursement_id, COALESCE(order_id, ''), merchant_id, kind, amount, commission, gst, withholding_tax, merchant_amount, COALESCE(provider, ''), COALESCE(provider_account, ''), status, created_at, updated_at
		FROM disbursements WHERE disbursement_id = $1
	`, id)

	disb := &model.Disbursement{}
	err := row.Scan(&disb.DisbursementID, &disb.OrderID, &disb.MerchantID, &disb.Kind, &disb.Amount, &disb.Commission, &disb.GST, &disb.WithholdingTax, &disb.MerchantAmount, &disb.Provider, &disb.ProviderAccount, &disb.Status, &disb.CreatedAt, &disb.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Disbursement with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve disbursement", err)
	}
	return disb, nil
}

// ApplyDisbursementFlow runs one disbursement creation atomically: scales the
// merchant's settled transaction balances when a factor is given, shifts
// balance_to_disburse when the delta is nonzero, and inserts the disbursement
// row, all in a single transaction. A timeout or conflict aborts the whole
// flow; nothing is half-applied.
func (d Datasource) ApplyDisbursementFlow(ctx context.Context, disb *model.Disbursement, scaleFactor *decimal.Decimal, balanceDelta decimal.Decimal) (*model.Disbursement, error) {
	if disb.DisbursementID == "" {
		disb.DisbursementID = model.GenerateUUIDWithSuffix("disb")
	}
	if disb.Status == "" {
		disb.Status = model.DisbursementPending
	}
	now := time.Now()
	disb.CreatedAt = now
	disb.UpdatedAt = now

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if scaleFactor != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET balance = ROUND(balance * $2, 2), updated_at = NOW()
			WHERE merchant_id = $1 AND status = 'completed' AND settlement = TRUE AND balance > 0
		`, disb.MerchantID, *scaleFactor)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scale transaction balances", err)
		}
	}

	if !balanceDelta.IsZero() {
		result, err := tx.ExecContext(ctx, `
			UPDATE merchants SET balance_to_disburse = balance_to_disburse + $2 WHERE id = $1
		`, disb.MerchantID, balanceDelta)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance to disburse", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rows == 0 {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Merchant with ID '%d' not found", disb.MerchantID), nil)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO disbursements (disbursement_id, order_id, merchant_id, kind, amount, commission, gst, withholding_tax, merchant_amount, provider, provider_account, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, disb.DisbursementID, disb.OrderID, disb.MerchantID, disb.Kind, disb.Amount, disb.Commission, disb.GST, disb.WithholdingTax, disb.MerchantAmount, disb.Provider, disb.ProviderAccount, disb.Status, disb.CreatedAt, disb.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Disbursement with ID '%s' already exists", disb.DisbursementID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create disbursement", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return disb, nil
}

// ResolveDisbursementRequest transitions one pending disbursement request to
// its final status and applies the accompanying balance reversals in the same
// transaction. The status guard makes resolution idempotent: a second call
// affects zero rows and returns Conflict without touching any balance.
func (d Datasource) ResolveDisbursementRequest(ctx context.Context, id, status string, scaleFactor *decimal.Decimal, balanceDelta decimal.Decimal) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var merchantID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE disbursements SET status = $2, updated_at = $3
		WHERE disbursement_id = $1 AND status = 'pending'
		RETURNING merchant_id
	`, id, status, time.Now()).Scan(&merchantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Disbursement '%s' is not pending", id), nil)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve disbursement", err)
	}

	if scaleFactor != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET balance = ROUND(balance * $2, 2), updated_at = NOW()
			WHERE merchant_id = $1 AND status = 'completed' AND settlement = TRUE AND balance > 0
		`, merchantID, *scaleFactor)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scale transaction balances", err)
		}
	}

	if !balanceDelta.IsZero() {
		_, err = tx.ExecContext(ctx, `
			UPDATE merchants SET balance_to_disburse = GREATEST(balance_to_disburse + $2, 0) WHERE id = $1
		`, merchantID, balanceDelta)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance to disburse", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// UpdateDisbursementStatus transitions a disbursement's status.
func (d Datasource) UpdateDisbursementStatus(ctx context.Context, id, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE disbursements SET status = $2, updated_at = $3 WHERE disbursement_id = $1
	`, id, status, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update disbursement status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Disbursement with ID '%s' not found", id), nil)
	}
	return nil
}
