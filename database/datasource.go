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
	"time"

	"github.com/rahpay/rahpay/model"
	"github.com/shopspring/decimal"
)

// IDataSource is the storage contract the engines depend on. It is satisfied
// by Datasource and by the testify mock under database/mocks.
type IDataSource interface {
	merchant
	transaction
	scheduledTask
	limit
	disbursement
	settlementReport
}

type merchant interface {
	GetMerchantByID(ctx context.Context, merchantID int64) (*model.Merchant, error)
	UpdateMerchantBalanceToDisburse(ctx context.Context, merchantID int64, delta decimal.Decimal) error
}

type transaction interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetWalletBalance(ctx context.Context, merchantID int64) (decimal.Decimal, error)
	GetDisbursableBalance(ctx context.Context, merchantID int64) (decimal.Decimal, error)
	GetPendingDisbursementTotal(ctx context.Context, merchantID int64) (decimal.Decimal, error)
	MarkTransactionCompleted(ctx context.Context, id string, settledAmount decimal.Decimal, responseCode, responseMessage string) (bool, error)
	MarkTransactionFailed(ctx context.Context, id string, responseCode, responseMessage string) error
	ScaleTransactionBalances(ctx context.Context, merchantID int64, factor decimal.Decimal) (int64, error)
	SetTransactionBalances(ctx context.Context, merchantID int64, value decimal.Decimal) (int64, error)
	SettleTransactions(ctx context.Context, transactionIDs []string) error
	FlipTransactionSettlement(ctx context.Context, transactionID string) error
	DeleteMerchantFinanceData(ctx context.Context, merchantID int64) error
}

type scheduledTask interface {
	CreateScheduledTask(ctx context.Context, task *model.ScheduledTask) (*model.ScheduledTask, error)
	GetScheduledTask(ctx context.Context, taskID string) (*model.ScheduledTask, error)
	GetDueScheduledTasks(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledTask, error)
	MarkScheduledTaskExecuted(ctx context.Context, taskID string, executedAt time.Time) error
	MarkScheduledTaskFailed(ctx context.Context, taskID string) error
}

type limit interface {
	GetActiveLimitPolicies(ctx context.Context, merchantID int64, provider model.Provider) ([]model.MerchantLimitPolicy, error)
	GetPendingReservationIDs(ctx context.Context, merchantTxnID string) ([]string, error)
	ReserveLimits(ctx context.Context, req model.ReservationRequest, windows []model.PolicyWindow) ([]string, error)
	CommitReservations(ctx context.Context, reservationIDs []string) error
	CancelReservations(ctx context.Context, reservationIDs []string) error
	GetLimitUsage(ctx context.Context, merchantID int64, provider model.Provider, period model.LimitPeriod, windowStart time.Time) (*model.MerchantLimitUsage, error)
}

type disbursement interface {
	CreateDisbursement(ctx context.Context, d *model.Disbursement) (*model.Disbursement, error)
	GetDisbursement(ctx context.Context, id string) (*model.Disbursement, error)
	UpdateDisbursementStatus(ctx context.Context, id, status string) error
	ApplyDisbursementFlow(ctx context.Context, d *model.Disbursement, scaleFactor *decimal.Decimal, balanceDelta decimal.Decimal) (*model.Disbursement, error)
	ResolveDisbursementRequest(ctx context.Context, id, status string, scaleFactor *decimal.Decimal, balanceDelta decimal.Decimal) error
}

type settlementReport interface {
	GetSettlementReports(ctx context.Context, merchantID int64, from, to time.Time) ([]model.SettlementReport, error)
}
