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
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/rahpay/rahpay/api/model"
)

func (a Api) GetWalletBalance(c *gin.Context) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}

	resp, err := a.rahpay.GetWalletBalance(c.Request.Context(), merchantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetDisbursementBalance(c *gin.Context) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}

	resp, err := a.rahpay.GetDisbursementBalance(c.Request.Context(), merchantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) AdjustWalletBalance(c *gin.Context) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}

	var req model2.AdjustWallet
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateAdjustWallet(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	updated, err := a.rahpay.AdjustMerchantWalletBalance(c.Request.Context(), merchantID, req.ToAdjustmentRequest())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions_updated": updated})
}

// GetSettlementReports returns a merchant's settlement reports between
// the from and to query parameters (RFC 3339). The range defaults to the
// last 30 days.
func (a Api) GetSettlementReports(c *gin.Context) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
			return
		}
		to = parsed
	}

	reports, err := a.rahpay.GetSettlementReports(c.Request.Context(), merchantID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// RemoveMerchantFinanceData deletes every finance record of a merchant.
// Meant for test and staging environments.
func (a Api) RemoveMerchantFinanceData(c *gin.Context) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}

	if err := a.rahpay.RemoveMerchantFinanceData(c.Request.Context(), merchantID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "merchant finance data removed"})
}
