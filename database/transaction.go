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

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"
	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
	"github.com/shopspring/decimal"
)

// RecordTransaction persists a new payin transaction.
func (d Datasource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := otel.Tracer("rahpay.transactions").Start(ctx, "Saving transaction to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO transactions(transaction_id,merchant_txn_id,merchant_id,amount,settled_amount,balance,status,settlement,provider,provider_account,response_code,response_message,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		txn.TransactionID, txn.MerchantTxnID, txn.MerchantID, txn.Amount, txn.SettledAmount, txn.Balance, txn.Status, txn.Settlement, txn.Provider, txn.ProviderAccount, txn.ResponseCode, txn.ResponseMessage, txn.CreatedAt, txn.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Transaction with ID '%s' already exists", txn.TransactionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}

	return txn, nil
}

// GetTransaction retrieves a single transaction by its system id.
func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT transaction_id, merchant_txn_id, merchant_id, amount, settled_amount, balance, status, settlement, provider, COALESCE(provider_account, ''), COALESCE(response_code, ''), COALESCE(response_message, ''), created_at, updated_at
		FROM transactions
		WHERE transaction_id = $1
	`, id)

	txn := &model.Transaction{}
	err := row.Scan(&txn.TransactionID, &txn.MerchantTxnID, &txn.MerchantID, &txn.Amount, &txn.SettledAmount, &txn.Balance, &txn.Status, &txn.Settlement, &txn.Provider, &txn.ProviderAccount, &txn.ResponseCode, &txn.ResponseMessage, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

// GetWalletBalance computes the merchant's settled wallet balance: the sum of
// settled_amount over transactions that have been through settlement and
// still carry a disbursable balance. No rows is a zero balance, not an error.
//
// Parameters:
// - ctx: The context for the query.
// - merchantID: The merchant to aggregate for.
//
// Returns:
// - decimal.Decimal: The wallet balance, zero when nothing matches.
// - error: Internal on store failures.
func (d Datasource) GetWalletBalance(ctx context.Context, merchantID int64) (decimal.Decimal, error) {
	ctx, span := otel.Tracer("rahpay.balances").Start(ctx, "Wallet balance aggregate")
	defer span.End()

	var balance decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(settled_amount), 0)
		FROM transactions
		WHERE merchant_id = $1 AND settlement = TRUE AND balance > 0
	`, merchantID).Scan(&balance)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute wallet balance", err)
	}
	return balance, nil
}

// GetDisbursableBalance computes the remaining disbursable amount: the sum of
// balance over settled transactions. Pending disbursement requests are not
// subtracted here because creating a request already scales the balances down.
func (d Datasource) GetDisbursableBalance(ctx context.Context, merchantID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0) FROM transactions
		WHERE merchant_id = $1 AND settlement = TRUE AND balance > 0
	`, merchantID).Scan(&balance)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute disbursable balance", err)
	}
	return balance, nil
}

// GetPendingDisbursementTotal sums the amounts of the merchant's disbursement
// requests still awaiting backoffice review. The wallet was already debited
// when those requests were created, so this is reporting only.
func (d Datasource) GetPendingDisbursementTotal(ctx context.Context, merchantID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM disbursements
		WHERE merchant_id = $1 AND kind = 'request' AND status = 'pending'
	`, merchantID).Scan(&total)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute pending disbursement total", err)
	}
	return total, nil
}

// MarkTransactionCompleted transitions a transaction to completed and stamps
// the settled amount and disbursable balance in the same statement. The
// status guard makes the transition idempotent: a duplicate IPN for an
// already-completed transaction affects zero rows and returns false, and the
// caller must not fire scheduling side effects in that case.
//
// Parameters:
// - ctx: The context for the statement.
// - id: The transaction's system id.
// - settledAmount: The amount net of commission that settlement will release.
// - responseCode: The provider response code to record.
// - responseMessage: The provider response message to record.
//
// Returns:
// - bool: True when this call performed the transition, false when the transaction was already completed.
// - error: NotFound when the transaction does not exist, Internal on store failures.
func (d Datasource) MarkTransactionCompleted(ctx context.Context, id string, settledAmount decimal.Decimal, responseCode, responseMessage string) (bool, error) {
	ctx, span := otel.Tracer("rahpay.transactions").Start(ctx, "Completing transaction")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'completed', settled_amount = $2, balance = $2, response_code = $3, response_message = $4, updated_at = $5
		WHERE transaction_id = $1 AND status <> 'completed'
	`, id, settledAmount, responseCode, responseMessage, time.Now())
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete transaction", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// Either already completed (normal duplicate IPN) or missing.
		exists, err := d.transactionExists(ctx, id)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
		}
		return false, nil
	}
	return true, nil
}

// MarkTransactionFailed records a failed provider result.
func (d Datasource) MarkTransactionFailed(ctx context.Context, id string, responseCode, responseMessage string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'failed', response_code = $2, response_message = $3, updated_at = $4
		WHERE transaction_id = $1 AND status = 'pending'
	`, id, responseCode, responseMessage, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark transaction failed", err)
	}
	return nil
}

func (d Datasource) transactionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check if transaction exists", err)
	}
	return exists, nil
}

// ScaleTransactionBalances multiplies every eligible transaction balance by
// factor in one bulk statement. Eligible rows are the merchant's completed,
// settled transactions with a positive balance. Each scaled balance is
// rounded half-up to two places independently.
//
// Returns the number of rows updated.
func (d Datasource) ScaleTransactionBalances(ctx context.Context, merchantID int64, factor decimal.Decimal) (int64, error) {
	ctx, span := otel.Tracer("rahpay.balances").Start(ctx, "Scaling transaction balances")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET balance = ROUND(balance * $2, 2), updated_at = $3
		WHERE merchant_id = $1 AND status = 'completed' AND settlement = TRUE AND balance > 0
	`, merchantID, factor, time.Now())
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scale transaction balances", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return rowsAffected, nil
}

// SetTransactionBalances bulk-sets the balance of the merchant's completed
// transactions to an absolute value. Callers use zero for offboarding.
func (d Datasource) SetTransactionBalances(ctx context.Context, merchantID int64, value decimal.Decimal) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET balance = $2, updated_at = $3
		WHERE merchant_id = $1 AND status = 'completed'
	`, merchantID, value, time.Now())
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to set transaction balances", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return rowsAffected, nil
}

// SettleTransactions finalizes the given transactions into the disbursable
// pool. Existence is checked before any write so a bad id set performs zero
// mutations.
//
// Parameters:
// - ctx: The context for the operation.
// - transactionIDs: The system ids to settle.
//
// Returns:
// - error: NotFound when no matching transactions exist, Internal on store failures.
func (d Datasource) SettleTransactions(ctx context.Context, transactionIDs []string) error {
	ctx, span := otel.Tracer("rahpay.settlement").Start(ctx, "Settling transactions")
	defer span.End()

	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE transaction_id = ANY($1)
	`, pq.Array(transactionIDs)).Scan(&count)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check transactions", err)
	}
	if count == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Transactions not found", nil)
	}

	_, err = d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET settlement = TRUE, status = 'completed', response_message = 'success', updated_at = $2
		WHERE transaction_id = ANY($1)
	`, pq.Array(transactionIDs), time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to settle transactions", err)
	}
	return nil
}

// FlipTransactionSettlement marks a single transaction as settled. Used by
// the scheduled settlement worker when a task comes due.
func (d Datasource) FlipTransactionSettlement(ctx context.Context, transactionID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET settlement = TRUE, updated_at = $2
		WHERE transaction_id = $1 AND status = 'completed'
	`, transactionID, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to flip settlement flag", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Completed transaction with ID '%s' not found", transactionID), nil)
	}
	return nil
}

// DeleteMerchantFinanceData hard-deletes every financial record of a
// merchant. Deletion order follows the foreign keys: scheduled tasks first,
// then settlement reports, disbursements and finally the transactions
// themselves. The whole cascade runs in one transaction; this is a
// destructive administrative operation.
func (d Datasource) DeleteMerchantFinanceData(ctx context.Context, merchantID int64) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, err = tx.ExecContext(ctx, `
		DELETE FROM scheduled_tasks
		WHERE transaction_id IN (SELECT transaction_id FROM transactions WHERE merchant_id = $1)
	`, merchantID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete scheduled tasks", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM settlement_reports WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete settlement reports", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM disbursements WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete disbursements", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete transactions", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}
