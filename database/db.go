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
	"database/sql"
	"log"
	"sync"

	"github.com/rahpay/rahpay/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createMerchantTables(db)
	if err != nil {
		return nil, err
	}
	err = createTransactionTable(db)
	if err != nil {
		return nil, err
	}
	err = createDisbursementTable(db)
	if err != nil {
		return nil, err
	}
	err = createSettlementTables(db)
	if err != nil {
		return nil, err
	}
	err = createLimitTables(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createMerchantTables creates the merchants table and the commission tiers
// referenced by it.
func createMerchantTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS commission_tiers (
			id SERIAL PRIMARY KEY,
			tier_id TEXT NOT NULL UNIQUE,
			rate_kind TEXT NOT NULL DEFAULT 'percent',
			rate NUMERIC(10,6) NOT NULL,
			gst_rate NUMERIC(10,6) NOT NULL DEFAULT 0,
			wht_rate NUMERIC(10,6) NOT NULL DEFAULT 0,
			settlement_duration INT NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS merchants (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			webhook_url TEXT,
			balance_to_disburse NUMERIC(20,2) NOT NULL DEFAULT 0,
			commission_tier_id TEXT REFERENCES commission_tiers(tier_id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// createTransactionTable creates the payin transactions table.
func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			merchant_txn_id TEXT NOT NULL,
			merchant_id BIGINT NOT NULL REFERENCES merchants(id),
			amount NUMERIC(20,2) NOT NULL,
			settled_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
			balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			status TEXT NOT NULL DEFAULT 'pending',
			settlement BOOLEAN NOT NULL DEFAULT FALSE,
			provider TEXT NOT NULL,
			provider_account TEXT,
			response_code TEXT,
			response_message TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_merchant_settlement
			ON transactions(merchant_id, settlement) WHERE balance > 0
	`)
	return err
}

func createDisbursementTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS disbursements (
			id SERIAL PRIMARY KEY,
			disbursement_id TEXT NOT NULL UNIQUE,
			order_id TEXT,
			merchant_id BIGINT NOT NULL REFERENCES merchants(id),
			kind TEXT NOT NULL,
			amount NUMERIC(20,2) NOT NULL,
			commission NUMERIC(20,2) NOT NULL DEFAULT 0,
			gst NUMERIC(20,2) NOT NULL DEFAULT 0,
			withholding_tax NUMERIC(20,2) NOT NULL DEFAULT 0,
			merchant_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
			provider TEXT,
			provider_account TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createSettlementTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settlement_reports (
			id SERIAL PRIMARY KEY,
			report_id TEXT NOT NULL UNIQUE,
			merchant_id BIGINT NOT NULL REFERENCES merchants(id),
			txn_count BIGINT NOT NULL DEFAULT 0,
			txn_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
			commission NUMERIC(20,2) NOT NULL DEFAULT 0,
			gst NUMERIC(20,2) NOT NULL DEFAULT 0,
			withholding_tax NUMERIC(20,2) NOT NULL DEFAULT 0,
			merchant_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
			settlement_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id SERIAL PRIMARY KEY,
			task_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL REFERENCES transactions(transaction_id),
			status TEXT NOT NULL DEFAULT 'pending',
			scheduled_at TIMESTAMP NOT NULL,
			executed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_due
			ON scheduled_tasks(scheduled_at) WHERE status = 'pending'
	`)
	return err
}

func createLimitTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS merchant_limit_policies (
			id SERIAL PRIMARY KEY,
			policy_id TEXT NOT NULL UNIQUE,
			merchant_id BIGINT NOT NULL REFERENCES merchants(id),
			provider TEXT NOT NULL,
			period TEXT NOT NULL,
			max_amount NUMERIC(20,2),
			max_txn BIGINT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			timezone TEXT NOT NULL DEFAULT 'Asia/Karachi',
			week_start_dow INT NOT NULL DEFAULT 1,
			UNIQUE (merchant_id, provider, period)
		);
		CREATE TABLE IF NOT EXISTS merchant_limit_usage (
			id SERIAL PRIMARY KEY,
			merchant_id BIGINT NOT NULL REFERENCES merchants(id),
			provider TEXT NOT NULL,
			period TEXT NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			amount_used NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (amount_used >= 0),
			txn_count BIGINT NOT NULL DEFAULT 0 CHECK (txn_count >= 0),
			UNIQUE (merchant_id, provider, period, window_start)
		);
		CREATE TABLE IF NOT EXISTS limit_reservations (
			id SERIAL PRIMARY KEY,
			reservation_id TEXT NOT NULL UNIQUE,
			merchant_id BIGINT NOT NULL REFERENCES merchants(id),
			provider TEXT NOT NULL,
			period TEXT NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			amount NUMERIC(20,2) NOT NULL,
			merchant_txn_id TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_limit_reservations_merchant_txn
			ON limit_reservations(merchant_txn_id) WHERE status = 'PENDING'
	`)
	return err
}
