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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses as stored on the transactions table.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Scheduled settlement task statuses.
const (
	TaskPending  = "pending"
	TaskExecuted = "executed"
	TaskFailed   = "failed"
)

// Limit reservation statuses.
const (
	ReservationPending   = "PENDING"
	ReservationCommitted = "COMMITTED"
	ReservationCanceled  = "CANCELED"
)

// Disbursement statuses.
const (
	DisbursementPending  = "pending"
	DisbursementApproved = "approved"
	DisbursementRejected = "rejected"
	DisbursementPaid     = "paid"
)

// Disbursement kinds.
const (
	DisbursementKindTopup   = "topup"
	DisbursementKindDispute = "dispute"
	DisbursementKindRequest = "request"
)

// Provider identifies a payment channel integrated with the platform.
type Provider string

const (
	ProviderJazzCash  Provider = "JAZZCASH"
	ProviderEasyPaisa Provider = "EASYPAISA"
	ProviderSwich     Provider = "SWICH"
	ProviderZindigi   Provider = "ZINDIGI"
)

// LimitPeriod is the window granularity of a merchant limit policy.
type LimitPeriod string

const (
	PeriodDay   LimitPeriod = "DAY"
	PeriodWeek  LimitPeriod = "WEEK"
	PeriodMonth LimitPeriod = "MONTH"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// Transaction represents one customer payin. Balance carries the amount still
// disbursable to the merchant; it only counts toward the wallet once the
// settlement flag flips.
type Transaction struct {
	TransactionID   string          `json:"transaction_id"`
	MerchantTxnID   string          `json:"merchant_txn_id"`
	MerchantID      int64           `json:"merchant_id"`
	Amount          decimal.Decimal `json:"amount"`
	SettledAmount   decimal.Decimal `json:"settled_amount"`
	Balance         decimal.Decimal `json:"balance"`
	Status          string          `json:"status"`
	Settlement      bool            `json:"settlement"`
	Provider        Provider        `json:"provider"`
	ProviderAccount string          `json:"provider_account"`
	ResponseCode    string          `json:"response_code"`
	ResponseMessage string          `json:"response_message"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Disbursement represents one payout event debited against a merchant's
// settled balance. Immutable once created except for status.
type Disbursement struct {
	DisbursementID  string          `json:"disbursement_id"`
	OrderID         string          `json:"order_id"`
	MerchantID      int64           `json:"merchant_id"`
	Kind            string          `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	Commission      decimal.Decimal `json:"commission"`
	GST             decimal.Decimal `json:"gst"`
	WithholdingTax  decimal.Decimal `json:"withholding_tax"`
	MerchantAmount  decimal.Decimal `json:"merchant_amount"`
	Provider        Provider        `json:"provider"`
	ProviderAccount string          `json:"provider_account"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SettlementReport is an append-only per-merchant summary of one settlement
// run. Produced by the periodic settlement batch, read-only here.
type SettlementReport struct {
	ReportID       string          `json:"report_id"`
	MerchantID     int64           `json:"merchant_id"`
	TxnCount       int64           `json:"txn_count"`
	TxnAmount      decimal.Decimal `json:"txn_amount"`
	Commission     decimal.Decimal `json:"commission"`
	GST            decimal.Decimal `json:"gst"`
	WithholdingTax decimal.Decimal `json:"withholding_tax"`
	MerchantAmount decimal.Decimal `json:"merchant_amount"`
	SettlementDate time.Time       `json:"settlement_date"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ScheduledTask is one row per transaction awaiting settlement.
type ScheduledTask struct {
	TaskID        string     `json:"task_id"`
	TransactionID string     `json:"transaction_id"`
	Status        string     `json:"status"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	ExecutedAt    *time.Time `json:"executed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MerchantLimitPolicy configures one per-period spend cap for a merchant and
// provider. Owned by backoffice, read-only to the engines.
type MerchantLimitPolicy struct {
	PolicyID     string           `json:"policy_id"`
	MerchantID   int64            `json:"merchant_id"`
	Provider     Provider         `json:"provider"`
	Period       LimitPeriod      `json:"period"`
	MaxAmount    *decimal.Decimal `json:"max_amount"`
	MaxTxn       *int64           `json:"max_txn"`
	Active       bool             `json:"active"`
	Timezone     string           `json:"timezone"`
	WeekStartDow time.Weekday     `json:"week_start_dow"`
}

// MerchantLimitUsage tracks cumulative usage of one policy window.
type MerchantLimitUsage struct {
	MerchantID  int64           `json:"merchant_id"`
	Provider    Provider        `json:"provider"`
	Period      LimitPeriod     `json:"period"`
	WindowStart time.Time       `json:"window_start"`
	AmountUsed  decimal.Decimal `json:"amount_used"`
	TxnCount    int64           `json:"txn_count"`
}

// LimitReservation is one tentative hold against a policy window. Rows are
// never deleted; they are the audit trail of every attempted charge.
type LimitReservation struct {
	ReservationID string          `json:"reservation_id"`
	MerchantID    int64           `json:"merchant_id"`
	Provider      Provider        `json:"provider"`
	Period        LimitPeriod     `json:"period"`
	WindowStart   time.Time       `json:"window_start"`
	Amount        decimal.Decimal `json:"amount"`
	MerchantTxnID string          `json:"merchant_txn_id"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CommissionTier is the merchant's pricing configuration. Rates are fractions
// (0.015 means 1.5%), SettlementDuration is in business days.
type CommissionTier struct {
	TierID             string          `json:"tier_id"`
	RateKind           string          `json:"rate_kind"`
	Rate               decimal.Decimal `json:"rate"`
	GSTRate            decimal.Decimal `json:"gst_rate"`
	WHTRate            decimal.Decimal `json:"wht_rate"`
	SettlementDuration int             `json:"settlement_duration"`
}

// Merchant holds the slice of merchant configuration the engines read.
// Commission may be nil when no tier has been assigned yet; scheduling treats
// that as a fatal configuration error.
type Merchant struct {
	MerchantID        int64           `json:"merchant_id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	WebhookURL        string          `json:"webhook_url"`
	BalanceToDisburse decimal.Decimal `json:"balance_to_disburse"`
	Commission        *CommissionTier `json:"commission"`
	CreatedAt         time.Time       `json:"created_at"`
}

// WalletBalance is the response shape of the balance calculator.
type WalletBalance struct {
	MerchantID    int64           `json:"merchant_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

// DisbursementBalance reports what a merchant can still request for payout.
type DisbursementBalance struct {
	MerchantID          int64           `json:"merchant_id"`
	DisbursableBalance  decimal.Decimal `json:"disbursable_balance"`
	PendingDisbursement decimal.Decimal `json:"pending_disbursement"`
}

// ProviderResult is the narrow view of a provider IPN the settlement
// scheduler consumes.
type ProviderResult struct {
	TransactionID   string   `json:"transaction_id"`
	Provider        Provider `json:"provider"`
	ResponseCode    string   `json:"response_code"`
	ResponseMessage string   `json:"response_message"`
}

// providerSuccessCodes maps each provider to the response codes its gateway
// uses to denote a completed payment.
var providerSuccessCodes = map[Provider][]string{
	ProviderJazzCash:  {"000", "121"},
	ProviderEasyPaisa: {"0000"},
	ProviderSwich:     {"00"},
	ProviderZindigi:   {"00", "000"},
}

// Succeeded reports whether the provider response denotes a completed payment.
func (r ProviderResult) Succeeded() bool {
	for _, code := range providerSuccessCodes[r.Provider] {
		if r.ResponseCode == code {
			return true
		}
	}
	return false
}

// AdjustmentRequest is the request type of the wallet adjustment engine:
// exactly one of ProportionalAdjustment or AbsoluteAdjustment.
type AdjustmentRequest interface {
	adjustment()
}

// ProportionalAdjustment scales every eligible transaction balance so the
// wallet total becomes Target.
type ProportionalAdjustment struct {
	Target decimal.Decimal `json:"target"`
}

func (ProportionalAdjustment) adjustment() {}

// AbsoluteAdjustment sets every eligible transaction balance to Value.
// Callers today only use zero (merchant offboarding).
type AbsoluteAdjustment struct {
	Value decimal.Decimal `json:"value"`
}

func (AbsoluteAdjustment) adjustment() {}

// DisbursementInput carries the caller-supplied fields of a new disbursement
// event. Commission components are derived from the merchant's tier, never
// accepted from the caller.
type DisbursementInput struct {
	OrderID         string          `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Provider        Provider        `json:"provider"`
	ProviderAccount string          `json:"provider_account"`
}

// ReservationRequest describes one prospective charge to hold limit capacity
// for. MerchantTxnID doubles as the idempotency key when supplied.
type ReservationRequest struct {
	MerchantID    int64           `json:"merchant_id"`
	Provider      Provider        `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	MerchantTxnID string          `json:"merchant_txn_id"`
}

// ReservationResult carries the ids of the holds taken for one request.
type ReservationResult struct {
	OK             bool     `json:"ok"`
	ReservationIDs []string `json:"reservation_ids"`
}

// PolicyWindow pairs a limit policy with the concrete usage window a
// reservation applies to.
type PolicyWindow struct {
	Policy      MerchantLimitPolicy
	WindowStart time.Time
	WindowEnd   time.Time
}
