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
package mocks

import (
	"context"
	"time"

	"github.com/rahpay/rahpay/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Merchant methods

func (m *MockDataSource) GetMerchantByID(ctx context.Context, merchantID int64) (*model.Merchant, error) {
	args := m.Called(ctx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Merchant), args.Error(1)
}

func (m *MockDataSource) UpdateMerchantBalanceToDisburse(ctx context.Context, merchantID int64, delta decimal.Decimal) error {
	args := m.Called(ctx, merchantID, delta)
	return args.Error(0)
}

// Transaction methods

func (m *MockDataSource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetWalletBalance(ctx context.Context, merchantID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDataSource) GetDisbursableBalance(ctx context.Context, merchantID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDataSource) GetPendingDisbursementTotal(ctx context.Context, merchantID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDataSource) MarkTransactionCompleted(ctx context.Context, id string, settledAmount decimal.Decimal, responseCode, responseMessage string) (bool, error) {
	args := m.Called(ctx, id, settledAmount, responseCode, responseMessage)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) MarkTransactionFailed(ctx context.Context, id string, responseCode, responseMessage string) error {
	args := m.Called(ctx, id, responseCode, responseMessage)
	return args.Error(0)
}

func (m *MockDataSource) ScaleTransactionBalances(ctx context.Context, merchantID int64, factor decimal.Decimal) (int64, error) {
	args := m.Called(ctx, merchantID, factor)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) SetTransactionBalances(ctx context.Context, merchantID int64, value decimal.Decimal) (int64, error) {
	args := m.Called(ctx, merchantID, value)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) SettleTransactions(ctx context.Context, transactionIDs []string) error {
	args := m.Called(ctx, transactionIDs)
	return args.Error(0)
}

func (m *MockDataSource) FlipTransactionSettlement(ctx context.Context, transactionID string) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}

func (m *MockDataSource) DeleteMerchantFinanceData(ctx context.Context, merchantID int64) error {
	args := m.Called(ctx, merchantID)
	return args.Error(0)
}

// Scheduled task methods

func (m *MockDataSource) CreateScheduledTask(ctx context.Context, task *model.ScheduledTask) (*model.ScheduledTask, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledTask), args.Error(1)
}

func (m *MockDataSource) GetScheduledTask(ctx context.Context, taskID string) (*model.ScheduledTask, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledTask), args.Error(1)
}

func (m *MockDataSource) GetDueScheduledTasks(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledTask, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ScheduledTask), args.Error(1)
}

func (m *MockDataSource) MarkScheduledTaskExecuted(ctx context.Context, taskID string, executedAt time.Time) error {
	args := m.Called(ctx, taskID, executedAt)
	return args.Error(0)
}

func (m *MockDataSource) MarkScheduledTaskFailed(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

// Limit methods

func (m *MockDataSource) GetActiveLimitPolicies(ctx context.Context, merchantID int64, provider model.Provider) ([]model.MerchantLimitPolicy, error) {
	args := m.Called(ctx, merchantID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MerchantLimitPolicy), args.Error(1)
}

func (m *MockDataSource) GetPendingReservationIDs(ctx context.Context, merchantTxnID string) ([]string, error) {
	args := m.Called(ctx, merchantTxnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataSource) ReserveLimits(ctx context.Context, req model.ReservationRequest, windows []model.PolicyWindow) ([]string, error) {
	args := m.Called(ctx, req, windows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataSource) CommitReservations(ctx context.Context, reservationIDs []string) error {
	args := m.Called(ctx, reservationIDs)
	return args.Error(0)
}

func (m *MockDataSource) CancelReservations(ctx context.Context, reservationIDs []string) error {
	args := m.Called(ctx, reservationIDs)
	return args.Error(0)
}

func (m *MockDataSource) GetLimitUsage(ctx context.Context, merchantID int64, provider model.Provider, period model.LimitPeriod, windowStart time.Time) (*model.MerchantLimitUsage, error) {
	args := m.Called(ctx, merchantID, provider, period, windowStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MerchantLimitUsage), args.Error(1)
}

// Disbursement methods

func (m *MockDataSource) CreateDisbursement(ctx context.Context, d *model.Disbursement) (*model.Disbursement, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Disbursement), args.Error(1)
}

func (m *MockDataSource) GetDisbursement(ctx context.Context, id string) (*model.Disbursement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Disbursement), args.Error(1)
}

func (m *MockDataSource) UpdateDisbursementStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDataSource) ApplyDisbursementFlow(ctx context.Context, d *model.Disbursement, scaleFactor *decimal.Decimal, balanceDelta decimal.Decimal) (*model.Disbursement, error) {
	args := m.Called(ctx, d, scaleFactor, balanceDelta)
	if disb, ok := args.Get(0).(*model.Disbursement); ok {
		return disb, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) ResolveDisbursementRequest(ctx context.Context, id, status string, scaleFactor *decimal.Decimal, balanceDelta decimal.Decimal) error {
	args := m.Called(ctx, id, status, scaleFactor, balanceDelta)
	return args.Error(0)
}

// Settlement report methods

func (m *MockDataSource) GetSettlementReports(ctx context.Context, merchantID int64, from, to time.Time) ([]model.SettlementReport, error) {
	args := m.Called(ctx, merchantID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SettlementReport), args.Error(1)
}
