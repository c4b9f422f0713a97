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
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/rahpay/rahpay/api/model"
	"github.com/rahpay/rahpay/model"
)

func (a Api) createDisbursement(c *gin.Context, create func(context.Context, int64, model.DisbursementInput) (*model.Disbursement, error)) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}

	var req model2.CreateDisbursement
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateCreateDisbursement(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	disb, err := create(c.Request.Context(), merchantID, req.ToDisbursementInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, disb)
}

func (a Api) CreateTopup(c *gin.Context) {
	a.createDisbursement(c, a.rahpay.CreateTopup)
}

func (a Api) CreateDisbursementDispute(c *gin.Context) {
	a.createDisbursement(c, a.rahpay.CreateDisbursementDispute)
}

func (a Api) CreateDisbursementRequest(c *gin.Context) {
	a.createDisbursement(c, a.rahpay.CreateDisbursementRequest)
}

func (a Api) GetDisbursement(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	disb, err := a.rahpay.GetDisbursement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, disb)
}

func (a Api) ApproveDisbursementRequest(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.rahpay.ApproveDisbursementRequest(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "disbursement request approved"})
}

func (a Api) RejectDisbursementRequest(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.rahpay.RejectDisbursementRequest(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "disbursement request rejected"})
}
