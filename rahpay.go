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
	"fmt"

	"github.com/rahpay/rahpay/config"
	"github.com/rahpay/rahpay/database"
	redis_db "github.com/rahpay/rahpay/internal/redis-db"
	"github.com/redis/go-redis/v9"
)

// Rahpay is the main struct of the settlement and disbursement core. All
// engines hang off it; the datasource is injected so tests can substitute a
// mock.
type Rahpay struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
}

// NewRahpay initializes the core with the provided datasource. Configuration
// must already be loaded; the queue and redis client are built from it.
func NewRahpay(db database.IDataSource) (*Rahpay, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newRahpay := &Rahpay{datasource: db, queue: newQueue, redis: redisClient.Client()}
	return newRahpay, nil
}
