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

package api

import (
	"net/http"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	model2 "github.com/rahpay/rahpay/api/model"
	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/internal/request"
	"github.com/rahpay/rahpay/model"
)

func TestGetWalletBalanceAPI(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("GetMerchantByID", mock.Anything, int64(21)).Return(&model.Merchant{MerchantID: 21, Name: gofakeit.Company()}, nil)
	ds.On("GetWalletBalance", mock.Anything, int64(21)).Return(decimal.RequireFromString("1520.75"), nil)
	ds.On("GetMerchantByID", mock.Anything, int64(404)).
		Return((*model.Merchant)(nil), apierror.NewAPIError(apierror.ErrNotFound, "Merchant not found", nil))

	t.Run("returns wallet balance", func(t *testing.T) {
		var response model.WalletBalance
		resp, err := SetUpTestRequest(TestRequest{
			Response: &response,
			Method:   "GET",
			Route:    "/merchants/21/wallet-balance",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, int64(21), response.MerchantID)
		assert.True(t, response.WalletBalance.Equal(decimal.RequireFromString("1520.75")))
	})

	t.Run("unknown merchant is 404", func(t *testing.T) {
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Response: &response,
			Method:   "GET",
			Route:    "/merchants/404/wallet-balance",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("non numeric id is 400", func(t *testing.T) {
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Response: &response,
			Method:   "GET",
			Route:    "/merchants/abc/wallet-balance",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestGetDisbursementBalanceAPI(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("GetMerchantByID", mock.Anything, int64(21)).Return(&model.Merchant{MerchantID: 21, Name: gofakeit.Company()}, nil)
	ds.On("GetDisbursableBalance", mock.Anything, int64(21)).Return(decimal.RequireFromString("900.00"), nil)
	ds.On("GetPendingDisbursementTotal", mock.Anything, int64(21)).Return(decimal.RequireFromString("150.00"), nil)

	var response model.DisbursementBalance
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/merchants/21/disbursement-balance",
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, response.DisbursableBalance.Equal(decimal.RequireFromString("900.00")))
	assert.True(t, response.PendingDisbursement.Equal(decimal.RequireFromString("150.00")))
}

func TestAdjustWalletBalanceAPI(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("GetMerchantByID", mock.Anything, int64(21)).Return(&model.Merchant{MerchantID: 21, Name: gofakeit.Company()}, nil)
	ds.On("GetWalletBalance", mock.Anything, int64(21)).Return(decimal.RequireFromString("2000.00"), nil)
	ds.On("ScaleTransactionBalances", mock.Anything, int64(21), mock.MatchedBy(func(f decimal.Decimal) bool {
		return f.Equal(decimal.RequireFromString("0.5"))
	})).Return(int64(4), nil)
	ds.On("SetTransactionBalances", mock.Anything, int64(21), mock.MatchedBy(func(v decimal.Decimal) bool {
		return v.IsZero()
	})).Return(int64(4), nil)

	t.Run("proportional adjustment", func(t *testing.T) {
		payloadBytes, _ := request.ToJsonReq(&model2.AdjustWallet{Target: decimal.RequireFromString("1000.00")})
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Payload:  payloadBytes,
			Response: &response,
			Method:   "POST",
			Route:    "/merchants/21/wallet-adjustments",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, float64(4), response["transactions_updated"])
	})

	t.Run("absolute zeroing", func(t *testing.T) {
		payloadBytes, _ := request.ToJsonReq(&model2.AdjustWallet{Target: decimal.Zero, IsAbsolute: true})
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Payload:  payloadBytes,
			Response: &response,
			Method:   "POST",
			Route:    "/merchants/21/wallet-adjustments",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("negative target rejected", func(t *testing.T) {
		payloadBytes, _ := request.ToJsonReq(&model2.AdjustWallet{Target: decimal.RequireFromString("-5")})
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Payload:  payloadBytes,
			Response: &response,
			Method:   "POST",
			Route:    "/merchants/21/wallet-adjustments",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestGetSettlementReportsAPI(t *testing.T) {
	router, ds := setupRouter(t)

	reports := []model.SettlementReport{
		{ReportID: "report_1", MerchantID: 21, TxnCount: 3, MerchantAmount: decimal.RequireFromString("2947.35")},
	}
	ds.On("GetSettlementReports", mock.Anything, int64(21), mock.Anything, mock.Anything).Return(reports, nil)

	t.Run("returns reports", func(t *testing.T) {
		var response []model.SettlementReport
		resp, err := SetUpTestRequest(TestRequest{
			Response: &response,
			Method:   "GET",
			Route:    "/merchants/21/settlement-reports",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, response, 1)
		assert.Equal(t, "report_1", response[0].ReportID)
	})

	t.Run("bad from timestamp rejected", func(t *testing.T) {
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Response: &response,
			Method:   "GET",
			Route:    "/merchants/21/settlement-reports?from=yesterday",
			Router:   router,
		})
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestRemoveMerchantFinanceDataAPI(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("GetMerchantByID", mock.Anything, int64(21)).Return(&model.Merchant{MerchantID: 21, Name: gofakeit.Company()}, nil)
	ds.On("DeleteMerchantFinanceData", mock.Anything, int64(21)).Return(nil)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "DELETE",
		Route:    "/merchants/21/finance-data",
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusOK, resp.Code)
	ds.AssertCalled(t, "DeleteMerchantFinanceData", mock.Anything, int64(21))
}
