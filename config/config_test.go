package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitConfig_EnvOnly(t *testing.T) {
	os.Setenv("RAHPAY_DATA_SOURCE_DNS", "postgres://postgres:@localhost:5432/rahpay?sslmode=disable")
	os.Setenv("RAHPAY_REDIS_DNS", "localhost:6379")
	defer os.Unsetenv("RAHPAY_DATA_SOURCE_DNS")
	defer os.Unsetenv("RAHPAY_REDIS_DNS")

	err := InitConfig("nonexistent.json")
	assert.NoError(t, err)

	cnf, err := Fetch()
	assert.NoError(t, err)
	assert.Equal(t, "Rahpay Server", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "new:webhook", cnf.Queue.WebhookQueue)
	assert.Equal(t, "new:settlement", cnf.Queue.SettlementQueue)
	assert.Equal(t, 30, cnf.Queue.WebhookDelaySeconds)
	assert.Equal(t, 10, cnf.Transaction.TimeoutSeconds)
}

func TestInitConfig_MissingDataSource(t *testing.T) {
	os.Unsetenv("RAHPAY_DATA_SOURCE_DNS")
	os.Unsetenv("RAHPAY_REDIS_DNS")

	err := InitConfig("nonexistent.json")
	assert.Error(t, err)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "test"})
	cnf, err := Fetch()
	assert.NoError(t, err)
	assert.Equal(t, "test", cnf.ProjectName)
}
