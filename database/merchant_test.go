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

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rahpay/rahpay/internal/apierror"
)

var merchantColumns = []string{
	"id", "name", "email", "webhook_url", "balance_to_disburse", "created_at",
	"tier_id", "rate_kind", "rate", "gst_rate", "wht_rate", "settlement_duration",
}

func TestGetMerchantByID_WithTier(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	rows := sqlmock.NewRows(merchantColumns).AddRow(
		42, "Karachi Mart", "ops@karachimart.pk", "https://karachimart.pk/hooks", "1500.00", time.Now(),
		"tier_basic", "percent", "0.015", "0.13", "0.04", 2,
	)
	mock.ExpectQuery("SELECT m.id, m.name").WithArgs(int64(42)).WillReturnRows(rows)

	merchant, err := ds.GetMerchantByID(context.Background(), 42)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), merchant.MerchantID)
	assert.NotNil(t, merchant.Commission)
	assert.Equal(t, "tier_basic", merchant.Commission.TierID)
	assert.True(t, merchant.Commission.Rate.Equal(decimal.RequireFromString("0.015")))
	assert.Equal(t, 2, merchant.Commission.SettlementDuration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMerchantByID_NoTier(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	rows := sqlmock.NewRows(merchantColumns).AddRow(
		42, "Karachi Mart", "", "", "0", time.Now(),
		nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT m.id, m.name").WithArgs(int64(42)).WillReturnRows(rows)

	merchant, err := ds.GetMerchantByID(context.Background(), 42)
	assert.NoError(t, err)
	assert.Nil(t, merchant.Commission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMerchantByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("SELECT m.id, m.name").WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(merchantColumns))

	_, err = ds.GetMerchantByID(context.Background(), 99)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateMerchantBalanceToDisburse(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	delta := decimal.RequireFromString("400.00")

	t.Run("adds delta", func(t *testing.T) {
		mock.ExpectExec("UPDATE merchants SET balance_to_disburse").
			WithArgs(int64(42), delta).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := ds.UpdateMerchantBalanceToDisburse(context.Background(), 42, delta)
		assert.NoError(t, err)
	})

	t.Run("missing merchant is not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE merchants SET balance_to_disburse").
			WithArgs(int64(99), delta).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := ds.UpdateMerchantBalanceToDisburse(context.Background(), 99, delta)
		assert.Error(t, err)
		apiErr, ok := err.(apierror.APIError)
		assert.True(t, ok)
		assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
