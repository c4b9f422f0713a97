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

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rahpay/rahpay"
	"github.com/rahpay/rahpay/config"
	redis_db "github.com/rahpay/rahpay/internal/redis-db"
)

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	// Settlements move money; they outrank merchant callbacks.
	queues[cfg.Queue.SettlementQueue] = 3
	queues[cfg.Queue.WebhookQueue] = 1
	return queues
}

func initializeWorkerServer(r *rahpayInstance, conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns), conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency:  1,
			Queues:       queues,
			ErrorHandler: asynq.ErrorHandlerFunc(webhookFailureHandler(r, conf)),
		},
	), nil
}

// webhookFailureHandler marks a webhook's scheduled task failed once asynq
// has exhausted every retry for it. Earlier attempts just log and wait for
// the next retry.
func webhookFailureHandler(r *rahpayInstance, conf *config.Configuration) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		if task.Type() != conf.Queue.WebhookQueue {
			return
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried < maxRetry {
			logrus.Warnf("webhook delivery failed (attempt %d/%d): %v", retried+1, maxRetry+1, err)
			return
		}

		if handleErr := r.rahpay.HandleWebhookFailure(ctx, task); handleErr != nil {
			logrus.Errorf("failed to record exhausted webhook: %v", handleErr)
		}
	}
}

func initializeTaskHandlers(r *rahpayInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.SettlementQueue, r.rahpay.ProcessSettlementTask)
	mux.HandleFunc(cfg.Queue.WebhookQueue, rahpay.ProcessWebhook)
}

// runSettlementSweep periodically executes due scheduled settlements whose
// queue tasks never arrived, so a dropped enqueue only delays settlement.
func runSettlementSweep(ctx context.Context, r *rahpayInstance) {
	interval := time.Duration(r.cnf.Queue.SweepIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			executed, err := r.rahpay.RunDueSettlements(ctx, 100)
			if err != nil {
				logrus.Errorf("settlement sweep failed: %v", err)
				continue
			}
			if executed > 0 {
				log.Printf(" [*] Settlement sweep executed %d tasks", executed)
			}
		}
	}
}

// workerCommands defines the "workers" command that consumes the settlement
// and webhook queues and runs the settlement sweep.
func workerCommands(r *rahpayInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start rahpay workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(r, conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(r, mux)

			go runSettlementSweep(ctx, r)

			if err := srv.Run(mux); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
