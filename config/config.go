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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"RAHPAY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"RAHPAY_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"RAHPAY_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RAHPAY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"RAHPAY_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"RAHPAY_REDIS_SKIP_TLS_VERIFY"`
}

// QueueConfig names the asynq queues the engines enqueue on and tunes the
// deferred-delivery behavior.
type QueueConfig struct {
	WebhookQueue        string `json:"webhook_queue" envconfig:"RAHPAY_QUEUE_WEBHOOK"`
	SettlementQueue     string `json:"settlement_queue" envconfig:"RAHPAY_QUEUE_SETTLEMENT"`
	WebhookDelaySeconds int    `json:"webhook_delay_seconds" envconfig:"RAHPAY_QUEUE_WEBHOOK_DELAY_SECONDS"`
	MaxRetryAttempts    int    `json:"max_retry_attempts" envconfig:"RAHPAY_QUEUE_MAX_RETRY_ATTEMPTS"`
	SweepIntervalSec    int    `json:"sweep_interval_sec" envconfig:"RAHPAY_QUEUE_SWEEP_INTERVAL_SEC"`
}

// TransactionConfig bounds the multi-statement financial mutations.
type TransactionConfig struct {
	TimeoutSeconds int `json:"timeout_seconds" envconfig:"RAHPAY_TRANSACTION_TIMEOUT_SECONDS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"RAHPAY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"RAHPAY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"RAHPAY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string            `json:"project_name" envconfig:"RAHPAY_PROJECT_NAME"`
	Server       ServerConfig      `json:"server"`
	DataSource   DataSourceConfig  `json:"data_source"`
	Redis        RedisConfig       `json:"redis"`
	Queue        QueueConfig       `json:"queue"`
	Transaction  TransactionConfig `json:"transaction"`
	Notification Notification      `json:"notification"`
	RateLimit    RateLimitConfig   `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("rahpay", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called rahpay.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Rahpay Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.SettlementQueue == "" {
		cnf.Queue.SettlementQueue = "new:settlement"
	}
	if cnf.Queue.WebhookDelaySeconds == 0 {
		// Gives the settlement record time to commit before the merchant
		// callback fires.
		cnf.Queue.WebhookDelaySeconds = 30
	}
	if cnf.Queue.MaxRetryAttempts == 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}
	if cnf.Queue.SweepIntervalSec == 0 {
		// The sweep re-executes due settlements whose queue tasks were lost.
		cnf.Queue.SweepIntervalSec = 60
	}

	if cnf.Transaction.TimeoutSeconds == 0 {
		cnf.Transaction.TimeoutSeconds = 10
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
