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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/rahpay/rahpay/config"
	"github.com/rahpay/rahpay/database/mocks"
	"github.com/rahpay/rahpay/model"
)

// newTestRahpay wires the facade against a testify datasource mock and a
// miniredis-backed queue.
func newTestRahpay(t *testing.T) (*Rahpay, *mocks.MockDataSource, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			WebhookQueue:        "new:webhook",
			SettlementQueue:     "new:settlement",
			WebhookDelaySeconds: 30,
			MaxRetryAttempts:    5,
		},
		Transaction: config.TransactionConfig{TimeoutSeconds: 10},
	})

	ds := new(mocks.MockDataSource)
	service, err := NewRahpay(ds)
	if err != nil {
		t.Fatalf("Error creating Rahpay instance: %s", err)
	}
	return service, ds, mr
}

func getMerchantMock(id int64, tier *model.CommissionTier) *model.Merchant {
	return &model.Merchant{
		MerchantID: id,
		Name:       gofakeit.Company(),
		Email:      gofakeit.Email(),
		WebhookURL: "",
		Commission: tier,
	}
}

func getCommissionTierMock() *model.CommissionTier {
	return &model.CommissionTier{
		TierID:             model.GenerateUUIDWithSuffix("tier"),
		RateKind:           model.RateKindPercent,
		Rate:               decimal.RequireFromString("0.015"),
		GSTRate:            decimal.RequireFromString("0.13"),
		WHTRate:            decimal.RequireFromString("0.04"),
		SettlementDuration: 1,
	}
}

func getTransactionMock(merchantID int64, amount string) *model.Transaction {
	return &model.Transaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		MerchantTxnID: gofakeit.UUID(),
		MerchantID:    merchantID,
		Amount:        decimal.RequireFromString(amount),
		Status:        model.StatusPending,
		Provider:      model.ProviderJazzCash,
	}
}
