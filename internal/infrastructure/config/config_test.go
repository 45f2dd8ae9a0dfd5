package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.GRPCPort)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, BrokerNone, cfg.Messaging.Broker)
	assert.Equal(t, 3, cfg.Checkout.OrderNoRetries)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, time.Second, cfg.Outbox.Interval)
	assert.Equal(t, uint32(5), cfg.Outbox.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Outbox.BreakerTimeout)
}

func TestLoadFrom_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  mode: test
database:
  driver: memory
messaging:
  broker: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
    topic: orders
checkout:
  tax_rate_bp: 800
  shipping_fee: 1000
  free_shipping_threshold: 9900
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, int64(800), cfg.Checkout.TaxRateBP)
	assert.Equal(t, int64(9900), cfg.Checkout.FreeShippingThreshold)
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	path := writeConfig(t, "database:\n  password: from-file\n")
	t.Setenv("STOREFRONT_DATABASE_PASSWORD", "from-env")
	t.Setenv("STOREFRONT_SERVER_PORT", "7070")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"非法端口", "server:\n  port: 70000\n"},
		{"未知驱动", "database:\n  driver: sqlite\n"},
		{"未知消息中间件", "messaging:\n  broker: nats\n"},
		{"kafka缺少topic", "messaging:\n  broker: kafka\n  kafka:\n    topic: \"\"\n"},
		{"负税率", "checkout:\n  tax_rate_bp: -1\n"},
		{"生产环境默认密钥", "server:\n  mode: release\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		User: "root", Password: "pw", Host: "db", Port: 3306, DBName: "storefront",
		Charset: "utf8mb4", ParseTime: true, Loc: "Asia/Shanghai",
	}
	assert.Equal(t, "root:pw@tcp(db:3306)/storefront?charset=utf8mb4&parseTime=true&loc=Asia%2FShanghai", d.DSN())
}
