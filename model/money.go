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

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale all derived money values are rounded to.
// Rounding is half-up, matching the provider statements the platform
// reconciles against.
const MoneyPlaces = 2

// Commission tier rate kinds.
const (
	RateKindPercent = "percent"
	RateKindFixed   = "fixed"
)

// CommissionBreakdown is the decomposition of a transaction amount into the
// platform's cut and the merchant's net.
type CommissionBreakdown struct {
	Amount         decimal.Decimal `json:"amount"`
	Commission     decimal.Decimal `json:"commission"`
	GST            decimal.Decimal `json:"gst"`
	WithholdingTax decimal.Decimal `json:"withholding_tax"`
	MerchantAmount decimal.Decimal `json:"merchant_amount"`
}

// Breakdown computes the commission components for an amount under this tier.
// commission = amount x rate (or the fixed rate), gst = commission x gstRate,
// wht = commission x whtRate, merchant amount = amount - commission - gst - wht.
// Every component is rounded half-up to MoneyPlaces before the next one is
// derived, so the parts always sum back to the amount minus the merchant net.
func (c *CommissionTier) Breakdown(amount decimal.Decimal) (CommissionBreakdown, error) {
	if c == nil {
		return CommissionBreakdown{}, errors.New("merchant commission tier is not configured")
	}
	if amount.Sign() <= 0 {
		return CommissionBreakdown{}, errors.New("amount must be greater than zero")
	}

	if c.RateKind != RateKindPercent && c.RateKind != RateKindFixed && c.RateKind != "" {
		return CommissionBreakdown{}, errors.New("unknown commission rate kind: " + c.RateKind)
	}

	commission := roundMoney(commissionFor(c, amount))
	gst := roundMoney(commission.Mul(c.GSTRate))
	wht := roundMoney(commission.Mul(c.WHTRate))
	merchantAmount := amount.Sub(commission).Sub(gst).Sub(wht)

	if merchantAmount.Sign() < 0 {
		return CommissionBreakdown{}, errors.New("commission exceeds transaction amount")
	}

	return CommissionBreakdown{
		Amount:         amount,
		Commission:     commission,
		GST:            gst,
		WithholdingTax: wht,
		MerchantAmount: merchantAmount,
	}, nil
}

func commissionFor(c *CommissionTier, amount decimal.Decimal) decimal.Decimal {
	if c.RateKind == RateKindFixed {
		return c.Rate
	}
	return amount.Mul(c.Rate)
}

// roundMoney rounds half-up to MoneyPlaces.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ScaleFactor computes the multiplier that takes current to target for a
// proportional wallet adjustment. Each transaction balance is scaled and
// rounded independently, so the scaled sum may drift from target by less than
// one minor unit per transaction; callers accept that drift.
func ScaleFactor(target, current decimal.Decimal) (decimal.Decimal, error) {
	if current.IsZero() {
		return decimal.Zero, errors.New("Balance is 0")
	}
	if target.Sign() < 0 {
		return decimal.Zero, errors.New("target balance cannot be negative")
	}
	return target.DivRound(current, 8), nil
}
