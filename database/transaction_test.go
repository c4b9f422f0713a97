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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

func TestRecordTransaction_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()
	txn := &model.Transaction{
		TransactionID: "txn_1",
		MerchantTxnID: "order-1",
		MerchantID:    42,
		Amount:        decimal.RequireFromString("1000.00"),
		Status:        model.StatusPending,
		Provider:      model.ProviderJazzCash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.TransactionID, txn.MerchantTxnID, txn.MerchantID, txn.Amount, txn.SettledAmount, txn.Balance, txn.Status, txn.Settlement, txn.Provider, txn.ProviderAccount, txn.ResponseCode, txn.ResponseMessage, txn.CreatedAt, txn.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.RecordTransaction(context.Background(), txn)
	assert.NoError(t, err)
	assert.Equal(t, "txn_1", created.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransaction_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = ds.RecordTransaction(context.Background(), &model.Transaction{TransactionID: "txn_1"})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetWalletBalance_SumsOnlySettledWithPositiveBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(settled_amount\), 0\)\s+FROM transactions\s+WHERE merchant_id = \$1 AND settlement = TRUE AND balance > 0`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("1520.75"))

	balance, err := ds.GetWalletBalance(context.Background(), 42)
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1520.75")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWalletBalance_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(settled_amount\), 0\)`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("0"))

	balance, err := ds.GetWalletBalance(context.Background(), 42)
	assert.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestMarkTransactionCompleted_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	settled := decimal.RequireFromString("9824.50")

	mock.ExpectExec(`UPDATE transactions\s+SET status = 'completed'`).
		WithArgs("txn_1", settled, "000", "success", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	performed, err := ds.MarkTransactionCompleted(context.Background(), "txn_1", settled, "000", "success")
	assert.NoError(t, err)
	assert.True(t, performed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkTransactionCompleted_AlreadyCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec(`UPDATE transactions\s+SET status = 'completed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("txn_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	performed, err := ds.MarkTransactionCompleted(context.Background(), "txn_1", decimal.Zero, "000", "success")
	assert.NoError(t, err)
	assert.False(t, performed)
}

func TestMarkTransactionCompleted_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec(`UPDATE transactions\s+SET status = 'completed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("txn_missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = ds.MarkTransactionCompleted(context.Background(), "txn_missing", decimal.Zero, "000", "success")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestScaleTransactionBalances(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	factor := decimal.RequireFromString("0.5")

	mock.ExpectExec(`UPDATE transactions\s+SET balance = ROUND\(balance \* \$2, 2\)`).
		WithArgs(int64(42), factor, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	rows, err := ds.ScaleTransactionBalances(context.Background(), 42, factor)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTransactions_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	ids := []string{"txn_1", "txn_2"}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions WHERE transaction_id = ANY\(\$1\)`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`UPDATE transactions\s+SET settlement = TRUE, status = 'completed', response_message = 'success'`).
		WithArgs(pq.Array(ids), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = ds.SettleTransactions(context.Background(), ids)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTransactions_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	ids := []string{"txn_missing"}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions WHERE transaction_id = ANY\(\$1\)`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err = ds.SettleTransactions(context.Background(), ids)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
	assert.Equal(t, "Transactions not found", apiErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlipTransactionSettlement_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec(`UPDATE transactions\s+SET settlement = TRUE, updated_at = \$2\s+WHERE transaction_id = \$1 AND status = 'completed'`).
		WithArgs("txn_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.FlipTransactionSettlement(context.Background(), "txn_1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlipTransactionSettlement_NotCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec(`UPDATE transactions\s+SET settlement = TRUE, updated_at = \$2\s+WHERE transaction_id = \$1 AND status = 'completed'`).
		WithArgs("txn_missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.FlipTransactionSettlement(context.Background(), "txn_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
	assert.Equal(t, "Completed transaction with ID 'txn_missing' not found", apiErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMerchantFinanceData_CascadeOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM scheduled_tasks`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`DELETE FROM settlement_reports WHERE merchant_id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM disbursements WHERE merchant_id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM transactions WHERE merchant_id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectCommit()

	err = ds.DeleteMerchantFinanceData(context.Background(), 42)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMerchantFinanceData_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM scheduled_tasks`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`DELETE FROM settlement_reports WHERE merchant_id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = ds.DeleteMerchantFinanceData(context.Background(), 42)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
