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
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/rahpay/rahpay/api/model"
	"github.com/rahpay/rahpay/model"
)

func (a Api) ReserveLimits(c *gin.Context) {
	var req model2.ReserveLimits
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateReserveLimits(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	result, err := a.rahpay.ReserveLimits(c.Request.Context(), req.ToReservationRequest())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetLimitUsage reports consumed limit capacity for one merchant, provider
// and period in the window containing now.
func (a Api) GetLimitUsage(c *gin.Context) {
	merchantID, ok := merchantIDParam(c)
	if !ok {
		return
	}
	provider := c.Query("provider")
	period := c.Query("period")
	if provider == "" || period == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider and period query parameters are required"})
		return
	}

	usage, err := a.rahpay.GetLimitUsage(c.Request.Context(), merchantID, model2.NormalizeProvider(provider), model.LimitPeriod(strings.ToUpper(period)), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (a Api) CommitReservations(c *gin.Context) {
	var req model2.ReservationIDs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateReservationIDs(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.rahpay.CommitReservations(c.Request.Context(), req.ReservationIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reservations committed"})
}

func (a Api) CancelReservations(c *gin.Context) {
	var req model2.ReservationIDs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateReservationIDs(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.rahpay.CancelReservations(c.Request.Context(), req.ReservationIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reservations cancelled"})
}
