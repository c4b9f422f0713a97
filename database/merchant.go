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

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
	"github.com/shopspring/decimal"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// GetMerchantByID retrieves a merchant and its commission tier.
// The commission tier is optional on the merchant row; a merchant without an
// assigned tier is returned with Commission set to nil, and it is the
// caller's job to treat that as a configuration error where a tier is
// required.
//
// Parameters:
// - ctx: The context for the query.
// - merchantID: The merchant's numeric id.
//
// Returns:
// - *model.Merchant: The merchant with its commission tier, if any.
// - error: NotFound when the merchant does not exist, Internal on store failures.
func (d Datasource) GetMerchantByID(ctx context.Context, merchantID int64) (*model.Merchant, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT m.id, m.name, COALESCE(m.email, ''), COALESCE(m.webhook_url, ''), m.balance_to_disburse, m.created_at,
		       c.tier_id, c.rate_kind, c.rate, c.gst_rate, c.wht_rate, c.settlement_duration
		FROM merchants m
		LEFT JOIN commission_tiers c ON c.tier_id = m.commission_tier_id
		WHERE m.id = $1
	`, merchantID)

	merchant := &model.Merchant{}
	var tierID, rateKind sql.NullString
	var rate, gstRate, whtRate decimal.NullDecimal
	var settlementDuration sql.NullInt64

	err := row.Scan(
		&merchant.MerchantID,
		&merchant.Name,
		&merchant.Email,
		&merchant.WebhookURL,
		&merchant.BalanceToDisburse,
		&merchant.CreatedAt,
		&tierID,
		&rateKind,
		&rate,
		&gstRate,
		&whtRate,
		&settlementDuration,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Merchant with ID '%d' not found", merchantID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve merchant", err)
	}

	if tierID.Valid {
		merchant.Commission = &model.CommissionTier{
			TierID:             tierID.String,
			RateKind:           rateKind.String,
			Rate:               rate.Decimal,
			GSTRate:            gstRate.Decimal,
			WHTRate:            whtRate.Decimal,
			SettlementDuration: int(settlementDuration.Int64),
		}
	}

	return merchant, nil
}

// UpdateMerchantBalanceToDisburse atomically adds delta to the merchant's
// balance_to_disburse counter. Delta may be negative; the counter is the
// money reserved for payout but not yet paid out and is floored at zero by
// the callers' flow, not here.
func (d Datasource) UpdateMerchantBalanceToDisburse(ctx context.Context, merchantID int64, delta decimal.Decimal) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE merchants SET balance_to_disburse = balance_to_disburse + $2 WHERE id = $1
	`, merchantID, delta)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update merchant disburse balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Merchant with ID '%d' not found", merchantID), nil)
	}
	return nil
}
