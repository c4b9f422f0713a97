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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/internal/notification"
	"github.com/rahpay/rahpay/model"
)

var settlementTracer = otel.Tracer("rahpay.settlement")

// HandleProviderResult ingests one provider IPN. A success code completes the
// transaction and schedules its settlement; a failure code marks it failed.
// The completed transition happens in a single guarded UPDATE, so a duplicate
// IPN for an already-completed transaction performs nothing and fires no
// scheduling side effects.
func (l *Rahpay) HandleProviderResult(ctx context.Context, result model.ProviderResult) (*model.ScheduledTask, error) {
	ctx, span := settlementTracer.Start(ctx, "HandleProviderResult")
	defer span.End()

	txn, err := l.datasource.GetTransaction(ctx, result.TransactionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !result.Succeeded() {
		span.AddEvent("Provider reported failure", trace.WithAttributes(
			attribute.String("transaction.id", txn.TransactionID),
			attribute.String("response.code", result.ResponseCode),
		))
		if err := l.datasource.MarkTransactionFailed(ctx, txn.TransactionID, result.ResponseCode, result.ResponseMessage); err != nil {
			span.RecordError(err)
			return nil, err
		}
		return nil, nil
	}

	merchant, err := l.datasource.GetMerchantByID(ctx, txn.MerchantID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if merchant.Commission == nil {
		err := apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Merchant %d has no commission tier configured", merchant.MerchantID), nil)
		notification.NotifyError(err)
		span.RecordError(err)
		return nil, err
	}

	breakdown, err := merchant.Commission.Breakdown(txn.Amount)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, err.Error(), err)
	}

	performed, err := l.datasource.MarkTransactionCompleted(ctx, txn.TransactionID, breakdown.MerchantAmount, result.ResponseCode, result.ResponseMessage)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !performed {
		span.AddEvent("Transaction already completed, skipping scheduling")
		log.Printf("duplicate provider result for transaction %s ignored", txn.TransactionID)
		return nil, nil
	}

	scheduledAt := model.AddWeekdays(time.Now(), merchant.Commission.SettlementDuration)
	task, err := l.datasource.CreateScheduledTask(ctx, &model.ScheduledTask{
		TaskID:        model.GenerateUUIDWithSuffix("task"),
		TransactionID: txn.TransactionID,
		Status:        model.TaskPending,
		ScheduledAt:   scheduledAt,
	})
	if err != nil {
		span.RecordError(err)
		notification.NotifyError(err)
		return nil, err
	}

	if err := l.queue.queueSettlementExecution(SettlementTaskPayload{TaskID: task.TaskID, TransactionID: txn.TransactionID}, scheduledAt); err != nil {
		// The sweep in RunDueSettlements picks the task up from the table,
		// so a failed enqueue delays settlement instead of losing it.
		logrus.Errorf("failed to enqueue settlement for task %s: %v", task.TaskID, err)
		notification.NotifyError(err)
	}

	if err := l.SendWebhookDelayed(NewWebhook{
		Event:   EventTransactionCompleted,
		URL:     merchant.WebhookURL,
		TaskID:  task.TaskID,
		Payload: txn,
	}); err != nil {
		logrus.Errorf("failed to enqueue merchant webhook for transaction %s: %v", txn.TransactionID, err)
		notification.NotifyError(err)
	}

	span.AddEvent("Settlement scheduled", trace.WithAttributes(
		attribute.String("task.id", task.TaskID),
		attribute.String("scheduled.at", scheduledAt.Format(time.RFC3339)),
	))
	return task, nil
}

// ExecuteScheduledSettlement settles the transaction behind one due task:
// flips the settlement flag so the funds start counting toward the merchant's
// wallet, then stamps the task executed. Safe to call twice; the executed
// stamp only lands on a pending task and the settlement flip is idempotent.
func (l *Rahpay) ExecuteScheduledSettlement(ctx context.Context, taskID string) error {
	ctx, span := settlementTracer.Start(ctx, "ExecuteScheduledSettlement")
	defer span.End()

	task, err := l.datasource.GetScheduledTask(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if task.Status != model.TaskPending {
		span.AddEvent("Task no longer pending, nothing to do")
		return nil
	}

	if err := l.datasource.FlipTransactionSettlement(ctx, task.TransactionID); err != nil {
		span.RecordError(err)
		if markErr := l.datasource.MarkScheduledTaskFailed(ctx, taskID); markErr != nil {
			logrus.Errorf("failed to mark task %s failed: %v", taskID, markErr)
		}
		notification.NotifyError(err)
		return err
	}

	if err := l.datasource.MarkScheduledTaskExecuted(ctx, taskID, time.Now()); err != nil {
		span.RecordError(err)
		return err
	}

	txn, err := l.datasource.GetTransaction(ctx, task.TransactionID)
	if err == nil {
		merchant, merr := l.datasource.GetMerchantByID(ctx, txn.MerchantID)
		if merr == nil && merchant.WebhookURL != "" {
			if werr := l.SendWebhook(NewWebhook{Event: EventTransactionSettled, URL: merchant.WebhookURL, TaskID: taskID, Payload: txn}); werr != nil {
				logrus.Errorf("failed to enqueue settled webhook for %s: %v", task.TransactionID, werr)
			}
		}
	}

	span.AddEvent("Settlement executed", trace.WithAttributes(attribute.String("task.id", taskID)))
	return nil
}

// ProcessSettlementTask is the asynq handler for deferred settlement
// executions enqueued by HandleProviderResult.
func (l *Rahpay) ProcessSettlementTask(ctx context.Context, task *asynq.Task) error {
	var payload SettlementTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling settlement payload: %v", err)
		return err
	}
	return l.ExecuteScheduledSettlement(ctx, payload.TaskID)
}

// RunDueSettlements sweeps the scheduled task table for pending tasks whose
// date has passed and executes them. Covers tasks whose queue entry was lost,
// and is the sole execution path when the queue is disabled.
func (l *Rahpay) RunDueSettlements(ctx context.Context, batchSize int) (int, error) {
	ctx, span := settlementTracer.Start(ctx, "RunDueSettlements")
	defer span.End()

	if batchSize <= 0 {
		batchSize = 100
	}
	tasks, err := l.datasource.GetDueScheduledTasks(ctx, time.Now(), batchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	executed := 0
	for _, task := range tasks {
		if err := l.ExecuteScheduledSettlement(ctx, task.TaskID); err != nil {
			logrus.Errorf("settlement sweep: task %s failed: %v", task.TaskID, err)
			continue
		}
		executed++
	}
	if executed > 0 {
		log.Printf(" [*] Settlement sweep executed %d of %d due tasks", executed, len(tasks))
	}
	return executed, nil
}
