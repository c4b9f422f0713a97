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
	"github.com/gin-gonic/gin"

	"github.com/rahpay/rahpay"
	"github.com/rahpay/rahpay/api/middleware"
	"github.com/rahpay/rahpay/config"
)

type Api struct {
	rahpay *rahpay.Rahpay
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/ipn/:provider", a.HandleProviderIPN)

	router.POST("/transactions", a.RecordTransaction)
	router.GET("/transactions/:id", a.GetTransaction)
	router.POST("/transactions/settle", a.SettleTransactions)

	router.GET("/merchants/:id/wallet-balance", a.GetWalletBalance)
	router.GET("/merchants/:id/disbursement-balance", a.GetDisbursementBalance)
	router.POST("/merchants/:id/wallet-adjustments", a.AdjustWalletBalance)
	router.GET("/merchants/:id/settlement-reports", a.GetSettlementReports)
	router.DELETE("/merchants/:id/finance-data", a.RemoveMerchantFinanceData)

	router.POST("/limits/reservations", a.ReserveLimits)
	router.POST("/limits/reservations/commit", a.CommitReservations)
	router.POST("/limits/reservations/cancel", a.CancelReservations)
	router.GET("/merchants/:id/limit-usage", a.GetLimitUsage)

	router.POST("/merchants/:id/topups", a.CreateTopup)
	router.POST("/merchants/:id/disputes", a.CreateDisbursementDispute)
	router.POST("/merchants/:id/disbursement-requests", a.CreateDisbursementRequest)
	router.GET("/disbursements/:id", a.GetDisbursement)
	router.POST("/disbursements/:id/approve", a.ApproveDisbursementRequest)
	router.POST("/disbursements/:id/reject", a.RejectDisbursementRequest)

	return a.router
}

func NewAPI(r *rahpay.Rahpay) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	router := gin.Default()
	router.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		router.Use(middleware.SecretKeyAuthMiddleware())
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{rahpay: r, router: router}
}
