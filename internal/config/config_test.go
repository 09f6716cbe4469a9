package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9091", cfg.HTTP.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "storefront-orders", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, time.Second, cfg.Kafka.RelayInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":8080"
log:
  level: debug
  format: console
store:
  backend: postgres
database:
  url: postgres://file/db
cart:
  ttl: 1h
`), 0o600))

	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://env/db")
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, time.Hour, cfg.Cart.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			HTTP:    HTTPConfig{Addr: ":1"},
			Store:   StoreConfig{Backend: BackendMemory},
			Catalog: CatalogConfig{Timeout: time.Second},
			Kafka:   KafkaConfig{Topic: "t"},
		}
	}

	c := base()
	assert.NoError(t, c.Validate())

	c = base()
	c.Store.Backend = BackendPostgres
	assert.Error(t, c.Validate())

	c = base()
	c.Store.Backend = "mongo"
	assert.Error(t, c.Validate())

	c = base()
	c.Catalog.URL = "http://catalog"
	c.Catalog.Timeout = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Kafka.Brokers = []string{"k:9092"}
	c.Kafka.Topic = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Kafka.Brokers = []string{"k:9092"}
	c.Kafka.RelayInterval = 0
	assert.Error(t, c.Validate())
	c.Kafka.RelayInterval = 500 * time.Millisecond
	assert.NoError(t, c.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STOREFRONT_TEST_DOTENV=yes\n"), 0o600))
	t.Setenv("STOREFRONT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("STOREFRONT_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "yes", os.Getenv("STOREFRONT_TEST_DOTENV"))
}
