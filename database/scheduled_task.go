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
	"database/sql"
	"fmt"
	"time"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

// CreateScheduledTask persists one pending settlement task for a transaction.
func (d Datasource) CreateScheduledTask(ctx context.Context, task *model.ScheduledTask) (*model.ScheduledTask, error) {
	if task.TaskID == "" {
		task.TaskID = model.GenerateUUIDWithSuffix("task")
	}
	if task.Status == "" {
		task.Status = model.TaskPending
	}
	task.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (task_id, transaction_id, status, scheduled_at, executed_at, created_at)
		VALUES ($1, $2, $3, $4, NULL, $5)
	`, task.TaskID, task.TransactionID, task.Status, task.ScheduledAt, task.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create scheduled task", err)
	}
	return task, nil
}

// GetScheduledTask retrieves one task by id.
func (d Datasource) GetScheduledTask(ctx context.Context, taskID string) (*model.ScheduledTask, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT task_id, transaction_id, status, scheduled_at, executed_at, created_at
		FROM scheduled_tasks WHERE task_id = $1
	`, taskID)

	task := &model.ScheduledTask{}
	err := row.Scan(&task.TaskID, &task.TransactionID, &task.Status, &task.ScheduledAt, &task.ExecutedAt, &task.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Scheduled task with ID '%s' not found", taskID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve scheduled task", err)
	}
	return task, nil
}

// GetDueScheduledTasks claims up to limit pending tasks whose scheduled time
// has passed. It uses SELECT FOR UPDATE SKIP LOCKED so concurrent workers
// never pick the same task.
func (d Datasource) GetDueScheduledTasks(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledTask, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT task_id, transaction_id, status, scheduled_at, executed_at, created_at
		FROM scheduled_tasks
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load due tasks", err)
	}
	defer rows.Close()

	var tasks []*model.ScheduledTask
	for rows.Next() {
		task := &model.ScheduledTask{}
		if err := rows.Scan(&task.TaskID, &task.TransactionID, &task.Status, &task.ScheduledAt, &task.ExecutedAt, &task.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan scheduled task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read due tasks", err)
	}
	return tasks, nil
}

// MarkScheduledTaskExecuted stamps a task executed. The status guard keeps a
// retried worker from re-executing a finished task.
func (d Datasource) MarkScheduledTaskExecuted(ctx context.Context, taskID string, executedAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE scheduled_tasks SET status = 'executed', executed_at = $2
		WHERE task_id = $1 AND status = 'pending'
	`, taskID, executedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark task executed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Pending task with ID '%s' not found", taskID), nil)
	}
	return nil
}

// MarkScheduledTaskFailed flags a task whose settlement or callback delivery
// permanently failed, leaving it visible for backoffice replay.
func (d Datasource) MarkScheduledTaskFailed(ctx context.Context, taskID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE scheduled_tasks SET status = 'failed' WHERE task_id = $1 AND status = 'pending'
	`, taskID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark task failed", err)
	}
	return nil
}
