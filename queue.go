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
	"encoding/json"
	"log"
	"time"

	"github.com/rahpay/rahpay/config"
	redis_db "github.com/rahpay/rahpay/internal/redis-db"

	"github.com/hibiken/asynq"
)

// Queue wraps the asynq client the engines enqueue deferred work on:
// merchant webhook deliveries and scheduled settlement executions.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// SettlementTaskPayload is the payload of one deferred settlement execution.
type SettlementTaskPayload struct {
	TaskID        string `json:"task_id"`
	TransactionID string `json:"transaction_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueSettlementExecution enqueues the deferred settlement of one
// transaction, processed when the scheduled date arrives. The task id is the
// scheduled task's id, so a duplicate enqueue of the same task is rejected by
// asynq rather than settled twice.
func (q *Queue) queueSettlementExecution(payload SettlementTaskPayload, scheduledAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	IPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(payload.TaskID),
		asynq.Queue(cfg.Queue.SettlementQueue),
		asynq.ProcessIn(time.Until(scheduledAt)),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.SettlementQueue, IPayload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued settlement execution: %+v", payload.TransactionID)
	return nil
}

// queueWebhookDelivery enqueues a merchant webhook with the configured
// delivery delay. The delay gives the settlement record time to commit
// before the merchant is notified.
func (q *Queue) queueWebhookDelivery(webhook NewWebhook, delay time.Duration) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.Queue(cfg.Queue.WebhookQueue),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.WebhookQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}
