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

	"github.com/rahpay/rahpay/model"
)

// RecordTransaction registers an inbound payin in pending state. The
// provider's IPN later moves it through the settlement scheduler.
func (l *Rahpay) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn.TransactionID == "" {
		txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	}
	if txn.Status == "" {
		txn.Status = model.StatusPending
	}
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	return l.datasource.RecordTransaction(ctx, txn)
}

// GetTransaction reads one transaction by its system id.
func (l *Rahpay) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return l.datasource.GetTransaction(ctx, id)
}

// GetSettlementReports lists a merchant's settlement reports in a date range.
func (l *Rahpay) GetSettlementReports(ctx context.Context, merchantID int64, from, to time.Time) ([]model.SettlementReport, error) {
	return l.datasource.GetSettlementReports(ctx, merchantID, from, to)
}
