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
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/rahpay/rahpay/api/model"
	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

// merchantIDParam parses the :id route parameter. Responds with 400 and
// returns false when the parameter is missing or not numeric.
func merchantIDParam(c *gin.Context) (int64, bool) {
	raw, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a number"})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}

// HandleProviderIPN ingests a provider's payment notification. A duplicate
// notification for a completed transaction responds 200 without side
// effects, so providers can retry deliveries freely.
func (a Api) HandleProviderIPN(c *gin.Context) {
	provider, passed := c.Params.Get("provider")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider is required. pass provider in the route /ipn/:provider"})
		return
	}

	var ipn model2.ProviderResult
	if err := c.ShouldBindJSON(&ipn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := ipn.ValidateProviderResult(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	task, err := a.rahpay.HandleProviderResult(c.Request.Context(), model.ProviderResult{
		TransactionID:   ipn.TransactionID,
		Provider:        model2.NormalizeProvider(provider),
		ResponseCode:    ipn.ResponseCode,
		ResponseMessage: ipn.ResponseMessage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if task == nil {
		c.JSON(http.StatusOK, gin.H{"message": "notification received"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a Api) RecordTransaction(c *gin.Context) {
	var req model2.RecordTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateRecordTransaction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.rahpay.RecordTransaction(c.Request.Context(), &model.Transaction{
		TransactionID:   req.TransactionID,
		MerchantTxnID:   req.MerchantTxnID,
		MerchantID:      req.MerchantID,
		Amount:          req.Amount,
		Provider:        model2.NormalizeProvider(req.Provider),
		ProviderAccount: req.ProviderAccount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.rahpay.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) SettleTransactions(c *gin.Context) {
	var req model2.SettleTransactions
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateSettleTransactions(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.rahpay.SettleTransactions(c.Request.Context(), req.TransactionIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transactions settled"})
}
