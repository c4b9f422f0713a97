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
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/rahpay/rahpay/model"
)

var knownProviders = map[model.Provider]bool{
	model.ProviderJazzCash:  true,
	model.ProviderEasyPaisa: true,
	model.ProviderSwich:     true,
	model.ProviderZindigi:   true,
}

// NormalizeProvider maps a caller-supplied provider name onto the canonical
// uppercase enum. Provider names arrive in mixed case from IPN routes.
func NormalizeProvider(s string) model.Provider {
	return model.Provider(strings.ToUpper(strings.TrimSpace(s)))
}

func knownProvider(s string) validation.RuleFunc {
	return func(interface{}) error {
		if !knownProviders[NormalizeProvider(s)] {
			return errors.New("unknown provider")
		}
		return nil
	}
}

// RecordTransaction is the POST /transactions payload.
type RecordTransaction struct {
	TransactionID   string          `json:"transaction_id"`
	MerchantTxnID   string          `json:"merchant_txn_id"`
	MerchantID      int64           `json:"merchant_id"`
	Amount          decimal.Decimal `json:"amount"`
	Provider        string          `json:"provider"`
	ProviderAccount string          `json:"provider_account"`
}

func (r *RecordTransaction) ValidateRecordTransaction() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MerchantID, validation.Required),
		validation.Field(&r.Provider, validation.Required, validation.By(knownProvider(r.Provider))),
		validation.Field(&r.Amount, validation.By(positiveAmount(r.Amount))),
	)
}

// ProviderResult is the IPN payload posted by a payment provider. The
// provider itself comes from the route.
type ProviderResult struct {
	TransactionID   string `json:"transaction_id"`
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`
}

func (r *ProviderResult) ValidateProviderResult() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TransactionID, validation.Required),
		validation.Field(&r.ResponseCode, validation.Required),
	)
}

// AdjustWallet is the wallet adjustment payload. Target is the desired
// wallet balance; is_absolute selects the bulk-set path used for zeroing.
type AdjustWallet struct {
	Target     decimal.Decimal `json:"target"`
	IsAbsolute bool            `json:"is_absolute"`
}

func (a *AdjustWallet) ValidateAdjustWallet() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Target, validation.By(func(interface{}) error {
			if a.Target.Sign() < 0 {
				return errors.New("target cannot be negative")
			}
			return nil
		})),
	)
}

// ToAdjustmentRequest maps the payload onto the engine's discriminated
// request type.
func (a *AdjustWallet) ToAdjustmentRequest() model.AdjustmentRequest {
	if a.IsAbsolute {
		return model.AbsoluteAdjustment{Value: a.Target}
	}
	return model.ProportionalAdjustment{Target: a.Target}
}

// SettleTransactions is the bulk settlement payload.
type SettleTransactions struct {
	TransactionIDs []string `json:"transaction_ids"`
}

func (s *SettleTransactions) ValidateSettleTransactions() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.TransactionIDs, validation.Required, validation.Length(1, 0)),
	)
}

// ReserveLimits is the limit reservation payload.
type ReserveLimits struct {
	MerchantID    int64           `json:"merchant_id"`
	Provider      string          `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	MerchantTxnID string          `json:"merchant_txn_id"`
}

func (r *ReserveLimits) ValidateReserveLimits() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MerchantID, validation.Required),
		validation.Field(&r.Provider, validation.Required, validation.By(knownProvider(r.Provider))),
		validation.Field(&r.Amount, validation.By(positiveAmount(r.Amount))),
	)
}

func (r *ReserveLimits) ToReservationRequest() model.ReservationRequest {
	return model.ReservationRequest{
		MerchantID:    r.MerchantID,
		Provider:      NormalizeProvider(r.Provider),
		Amount:        r.Amount,
		MerchantTxnID: r.MerchantTxnID,
	}
}

// ReservationIDs is the commit/cancel payload.
type ReservationIDs struct {
	ReservationIDs []string `json:"reservation_ids"`
}

func (r *ReservationIDs) ValidateReservationIDs() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ReservationIDs, validation.Required, validation.Length(1, 0)),
	)
}

// CreateDisbursement is the payload shared by topup, dispute and
// disbursement-request creation.
type CreateDisbursement struct {
	OrderID         string          `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Provider        string          `json:"provider"`
	ProviderAccount string          `json:"provider_account"`
}

func (d *CreateDisbursement) ValidateCreateDisbursement() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Provider, validation.Required, validation.By(knownProvider(d.Provider))),
		validation.Field(&d.Amount, validation.By(positiveAmount(d.Amount))),
	)
}

func (d *CreateDisbursement) ToDisbursementInput() model.DisbursementInput {
	return model.DisbursementInput{
		OrderID:         d.OrderID,
		Amount:          d.Amount,
		Provider:        NormalizeProvider(d.Provider),
		ProviderAccount: d.ProviderAccount,
	}
}

func positiveAmount(amount decimal.Decimal) validation.RuleFunc {
	return func(interface{}) error {
		if amount.Sign() <= 0 {
			return errors.New("amount must be greater than zero")
		}
		return nil
	}
}
