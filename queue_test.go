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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueSettlementExecution(t *testing.T) {
	service, _, mr := newTestRahpay(t)

	payload := SettlementTaskPayload{TaskID: "task_abc", TransactionID: "txn_abc"}
	err := service.queue.queueSettlementExecution(payload, time.Now().Add(24*time.Hour))
	assert.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	task, err := service.queue.Inspector.GetTaskInfo("new:settlement", "task_abc")
	if err != nil {
		return
	}
	assert.Equal(t, "task_abc", task.ID)
}

func TestQueueSettlementExecutionDuplicateTaskID(t *testing.T) {
	service, _, _ := newTestRahpay(t)

	payload := SettlementTaskPayload{TaskID: "task_dup", TransactionID: "txn_dup"}
	assert.NoError(t, service.queue.queueSettlementExecution(payload, time.Now().Add(time.Hour)))

	// same task id again: asynq rejects the duplicate
	err := service.queue.queueSettlementExecution(payload, time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestQueueWebhookDelivery(t *testing.T) {
	service, _, mr := newTestRahpay(t)

	err := service.queue.queueWebhookDelivery(NewWebhook{
		Event: EventTransactionCompleted,
		URL:   "https://merchant.example/webhook",
	}, 30*time.Second)
	assert.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}
