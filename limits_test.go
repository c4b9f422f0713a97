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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

func getLimitPolicyMock(merchantID int64, period model.LimitPeriod, maxAmount string) model.MerchantLimitPolicy {
	amount := decimal.RequireFromString(maxAmount)
	return model.MerchantLimitPolicy{
		PolicyID:     model.GenerateUUIDWithSuffix("pol"),
		MerchantID:   merchantID,
		Provider:     model.ProviderJazzCash,
		Period:       period,
		MaxAmount:    &amount,
		Active:       true,
		Timezone:     "Asia/Karachi",
		WeekStartDow: time.Monday,
	}
}

func TestReserveLimits(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	req := model.ReservationRequest{
		MerchantID: 42,
		Provider:   model.ProviderJazzCash,
		Amount:     decimal.RequireFromString("500.00"),
	}
	policies := []model.MerchantLimitPolicy{
		getLimitPolicyMock(42, model.PeriodDay, "10000"),
		getLimitPolicyMock(42, model.PeriodMonth, "100000"),
	}
	ds.On("GetActiveLimitPolicies", mock.Anything, int64(42), model.ProviderJazzCash).Return(policies, nil)
	ds.On("ReserveLimits", mock.Anything, req, mock.MatchedBy(func(windows []model.PolicyWindow) bool {
		if len(windows) != 2 {
			return false
		}
		for _, w := range windows {
			if !w.WindowStart.Before(w.WindowEnd) {
				return false
			}
		}
		return windows[0].Policy.Period == model.PeriodDay && windows[1].Policy.Period == model.PeriodMonth
	})).Return([]string{"res_1", "res_2"}, nil)

	result, err := service.ReserveLimits(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, []string{"res_1", "res_2"}, result.ReservationIDs)
	ds.AssertExpectations(t)
}

func TestReserveLimitsNoPolicies(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	ds.On("GetActiveLimitPolicies", mock.Anything, int64(42), model.ProviderJazzCash).
		Return([]model.MerchantLimitPolicy{}, nil)

	result, err := service.ReserveLimits(context.Background(), model.ReservationRequest{
		MerchantID: 42,
		Provider:   model.ProviderJazzCash,
		Amount:     decimal.RequireFromString("500.00"),
	})
	assert.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.ReservationIDs)
	ds.AssertNotCalled(t, "ReserveLimits", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveLimitsExceeded(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	req := model.ReservationRequest{
		MerchantID: 42,
		Provider:   model.ProviderJazzCash,
		Amount:     decimal.RequireFromString("9000.00"),
	}
	ds.On("GetActiveLimitPolicies", mock.Anything, int64(42), model.ProviderJazzCash).
		Return([]model.MerchantLimitPolicy{getLimitPolicyMock(42, model.PeriodDay, "10000")}, nil)
	ds.On("ReserveLimits", mock.Anything, req, mock.Anything).
		Return(nil, apierror.NewLimitExceededError(string(model.PeriodDay)))

	_, err := service.ReserveLimits(context.Background(), req)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrLimitExceeded, apiErr.Code)
	details, ok := apiErr.Details.(map[string]string)
	assert.True(t, ok)
	assert.Equal(t, "DAY", details["period"])
}

func TestReserveLimitsIdempotentOnMerchantTxnID(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	ds.On("GetPendingReservationIDs", mock.Anything, "order-77").Return([]string{"res_existing"}, nil)

	result, err := service.ReserveLimits(context.Background(), model.ReservationRequest{
		MerchantID:    42,
		Provider:      model.ProviderJazzCash,
		Amount:        decimal.RequireFromString("500.00"),
		MerchantTxnID: "order-77",
	})
	assert.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, []string{"res_existing"}, result.ReservationIDs)
	ds.AssertNotCalled(t, "GetActiveLimitPolicies", mock.Anything, mock.Anything, mock.Anything)
	ds.AssertNotCalled(t, "ReserveLimits", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveLimitsInvalidAmount(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	_, err := service.ReserveLimits(context.Background(), model.ReservationRequest{
		MerchantID: 42,
		Provider:   model.ProviderJazzCash,
		Amount:     decimal.Zero,
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
	ds.AssertNotCalled(t, "GetActiveLimitPolicies", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveLimitsInvalidTimezone(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	policy := getLimitPolicyMock(42, model.PeriodDay, "10000")
	policy.Timezone = "Mars/Olympus"
	ds.On("GetActiveLimitPolicies", mock.Anything, int64(42), model.ProviderJazzCash).
		Return([]model.MerchantLimitPolicy{policy}, nil)

	_, err := service.ReserveLimits(context.Background(), model.ReservationRequest{
		MerchantID: 42,
		Provider:   model.ProviderJazzCash,
		Amount:     decimal.RequireFromString("500.00"),
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidState, apiErr.Code)
	ds.AssertNotCalled(t, "ReserveLimits", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommitReservations(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	ids := []string{"res_1", "res_2"}
	ds.On("CommitReservations", mock.Anything, ids).Return(nil)

	assert.NoError(t, service.CommitReservations(context.Background(), ids))
	ds.AssertExpectations(t)
}

func TestCommitReservationsEmpty(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	assert.NoError(t, service.CommitReservations(context.Background(), nil))
	ds.AssertNotCalled(t, "CommitReservations", mock.Anything, mock.Anything)
}

func TestCancelReservations(t *testing.T) {
	service, ds, _ := newTestRahpay(t)

	ids := []string{"res_1"}
	ds.On("CancelReservations", mock.Anything, ids).Return(nil)

	assert.NoError(t, service.CancelReservations(context.Background(), ids))
	ds.AssertExpectations(t)
}
