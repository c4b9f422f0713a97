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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/rahpay/rahpay/config"

	"github.com/hibiken/asynq"
)

// NewWebhook represents one merchant notification. URL is the merchant's
// registered callback endpoint captured at enqueue time.
type NewWebhook struct {
	Event   string      `json:"event"`
	URL     string      `json:"url"`
	TaskID  string      `json:"task_id,omitempty"`
	Payload interface{} `json:"data"`
}

// Webhook events emitted by the engines.
const (
	EventTransactionCompleted = "transaction.completed"
	EventTransactionSettled   = "transaction.settled"
	EventDisbursementCreated  = "disbursement.created"
	EventDisbursementUpdated  = "disbursement.updated"
)

// deliverHTTP posts one webhook to the merchant endpoint, retrying transient
// failures with exponential backoff within this attempt. A non-2XX response
// is treated as a failure so asynq schedules the next attempt.
func deliverHTTP(data NewWebhook) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}

	operation := func() error {
		req, err := http.NewRequest("POST", data.URL, bytes.NewBuffer(jsonData))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		client := &http.Client{Timeout: 15 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logrus.Error(err)
			}
		}(resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&webhookStatusError{status: resp.StatusCode})
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	return backoff.Retry(operation, policy)
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return "webhook delivery failed with status " + http.StatusText(e.status)
}

// SendWebhook enqueues a merchant webhook for immediate delivery.
func (l *Rahpay) SendWebhook(webhook NewWebhook) error {
	if webhook.URL == "" {
		return nil
	}
	return l.queue.queueWebhookDelivery(webhook, 0)
}

// SendWebhookDelayed enqueues a merchant webhook with the configured
// post-settlement delay.
func (l *Rahpay) SendWebhookDelayed(webhook NewWebhook) error {
	if webhook.URL == "" {
		return nil
	}
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	delay := time.Duration(conf.Queue.WebhookDelaySeconds) * time.Second
	return l.queue.queueWebhookDelivery(webhook, delay)
}

// HandleWebhookFailure records a webhook delivery that exhausted its retries.
// When the webhook was tied to a scheduled task, that task is marked failed
// so the backoffice can replay the notification. Called from the worker's
// error handler on the final attempt only.
func (l *Rahpay) HandleWebhookFailure(ctx context.Context, task *asynq.Task) error {
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling failed webhook payload: %v", err)
		return err
	}

	logrus.Errorf("webhook delivery exhausted retries: event=%s url=%s", payload.Event, payload.URL)

	if payload.TaskID == "" {
		return nil
	}
	return l.datasource.MarkScheduledTaskFailed(ctx, payload.TaskID)
}

// ProcessWebhook is the asynq handler that delivers one queued merchant
// webhook. Returning an error keeps the task on the queue for retry; the
// final exhausted attempt is handled by the worker's failure hook, which
// marks the related scheduled task failed for backoffice replay.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	if payload.URL == "" {
		return nil
	}
	log.Printf("Processing webhook: %+v\n", payload.Event)
	err := deliverHTTP(payload)
	if err != nil {
		return err
	}
	return nil
}
