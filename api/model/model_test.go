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

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rahpay/rahpay/model"
)

func TestValidateRecordTransaction(t *testing.T) {
	valid := RecordTransaction{
		MerchantID: 1,
		Provider:   "jazzcash",
		Amount:     decimal.RequireFromString("100.00"),
	}
	assert.NoError(t, valid.ValidateRecordTransaction())

	unknownProvider := valid
	unknownProvider.Provider = "stripe"
	assert.Error(t, unknownProvider.ValidateRecordTransaction())

	noMerchant := valid
	noMerchant.MerchantID = 0
	assert.Error(t, noMerchant.ValidateRecordTransaction())

	negative := valid
	negative.Amount = decimal.RequireFromString("-1")
	assert.Error(t, negative.ValidateRecordTransaction())
}

func TestValidateProviderResult(t *testing.T) {
	valid := ProviderResult{TransactionID: "txn_1", ResponseCode: "000"}
	assert.NoError(t, valid.ValidateProviderResult())

	assert.Error(t, (&ProviderResult{ResponseCode: "000"}).ValidateProviderResult())
	assert.Error(t, (&ProviderResult{TransactionID: "txn_1"}).ValidateProviderResult())
}

func TestAdjustWalletMapping(t *testing.T) {
	proportional := AdjustWallet{Target: decimal.RequireFromString("500")}
	req := proportional.ToAdjustmentRequest()
	p, ok := req.(model.ProportionalAdjustment)
	assert.True(t, ok)
	assert.True(t, p.Target.Equal(decimal.RequireFromString("500")))

	absolute := AdjustWallet{Target: decimal.Zero, IsAbsolute: true}
	a, ok := absolute.ToAdjustmentRequest().(model.AbsoluteAdjustment)
	assert.True(t, ok)
	assert.True(t, a.Value.IsZero())

	negative := AdjustWallet{Target: decimal.RequireFromString("-10")}
	assert.Error(t, negative.ValidateAdjustWallet())
}

func TestValidateReserveLimits(t *testing.T) {
	valid := ReserveLimits{
		MerchantID: 1,
		Provider:   "easypaisa",
		Amount:     decimal.RequireFromString("250.00"),
	}
	assert.NoError(t, valid.ValidateReserveLimits())

	converted := valid.ToReservationRequest()
	assert.Equal(t, model.ProviderEasyPaisa, converted.Provider)
	assert.True(t, converted.Amount.Equal(valid.Amount))

	zeroAmount := valid
	zeroAmount.Amount = decimal.Zero
	assert.Error(t, zeroAmount.ValidateReserveLimits())
}

func TestValidateCreateDisbursement(t *testing.T) {
	valid := CreateDisbursement{
		Amount:   decimal.RequireFromString("1000.00"),
		Provider: "swich",
	}
	assert.NoError(t, valid.ValidateCreateDisbursement())

	converted := valid.ToDisbursementInput()
	assert.Equal(t, model.ProviderSwich, converted.Provider)

	missingProvider := CreateDisbursement{Amount: decimal.RequireFromString("10")}
	assert.Error(t, missingProvider.ValidateCreateDisbursement())
}
