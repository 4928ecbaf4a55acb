package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Port == 0 {
		t.Error("expected Server.Port to be non-zero")
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if !cfg.Engine.TransactionalAttempts {
		t.Error("expected transactional attempts enabled by default")
	}
	if cfg.Log.Level == "" {
		t.Error("expected Log.Level to be set")
	}
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_OverridesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	yml := `
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/x.db
  max_open_conns: 3
engine:
  transactional_attempts: false
`
	require.NoError(t, v.ReadConfig(strings.NewReader(yml)))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Database.SQLitePath)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Engine.TransactionalAttempts)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/metrics", cfg.Monitoring.MetricsPath)
}

func TestLoadFrom_RejectsUnknownDriver(t *testing.T) {
	v := viper.New()
	v.Set("database.driver", "oracle")
	_, err := LoadFrom(v)
	assert.Error(t, err)
}

func TestDatabaseConfig_PostgresDSN(t *testing.T) {
	d := GetDefaultConfig().Database
	dsn := d.PostgresDSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=bomflow")
	assert.Contains(t, dsn, "sslmode=disable")

	d.DSN = "postgres://u:p@db/x"
	assert.Equal(t, "postgres://u:p@db/x", d.PostgresDSN())
}

func TestConfigureLogger(t *testing.T) {
	logger := logrus.New()
	require.NoError(t, ConfigureLogger(logger, LogConfig{Level: "debug", Format: "text", Output: "stdout"}))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	// 非法级别回退到 info
	require.NoError(t, ConfigureLogger(logger, LogConfig{Level: "loud", Format: "json", Output: "stdout"}))
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestConfigureLogger_File(t *testing.T) {
	logger := logrus.New()
	path := filepath.Join(t.TempDir(), "logs", "bomflow.log")
	require.NoError(t, ConfigureLogger(logger, LogConfig{
		Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1,
	}))
	logger.Info("hello")

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.Info("captured")
	assert.Contains(t, buf.String(), "captured")
}
