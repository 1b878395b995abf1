package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
storage:
  type: local
  local_path: `+filepath.Join(t.TempDir(), "uploads")+`
jwt:
  secret: short
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "utf8mb4", cfg.Database.Charset)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, LockBackendLocal, cfg.Lock.Backend)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 50*time.Millisecond, cfg.Lock.RetryInterval)
	assert.Equal(t, 6000, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.DirExists(t, cfg.Storage.LocalPath)
}

func TestLoadConfigValues(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
  mode: debug
database:
  host: db
  port: 3307
storage:
  type: minio
  minio_bucket: media
lock:
  backend: redis
  ttl: 5s
cors:
  allowed_origins:
    - https://a.example
    - https://b.example
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "media", cfg.Storage.MinioBucket)
	assert.Equal(t, LockBackendRedis, cfg.Lock.Backend)
	assert.Equal(t, 5*time.Second, cfg.Lock.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfigOSS(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: oss
  oss_endpoint: oss-cn-hangzhou.aliyuncs.com
  oss_access_key: ak
  oss_secret_key: sk
  oss_bucket: langtest-media
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "oss", cfg.Storage.Type)
	assert.Equal(t, "oss-cn-hangzhou.aliyuncs.com", cfg.Storage.OSSEndpoint)
	assert.Equal(t, "ak", cfg.Storage.OSSAccessKey)
	assert.Equal(t, "sk", cfg.Storage.OSSSecretKey)
	assert.Equal(t, "langtest-media", cfg.Storage.OSSBucket)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "short secret in release",
			body: "server:\n  mode: release\nstorage:\n  type: minio\njwt:\n  secret: too-short\n",
		},
		{
			name: "unknown lock backend",
			body: "storage:\n  type: minio\nlock:\n  backend: etcd\n",
		},
		{
			name: "zero lock ttl",
			body: "storage:\n  type: minio\nlock:\n  ttl: 0s\n",
		},
		{
			name: "oss without bucket",
			body: "storage:\n  type: oss\n  oss_endpoint: oss-cn-hangzhou.aliyuncs.com\n",
		},
		{
			name: "oss without endpoint",
			body: "storage:\n  type: oss\n  oss_bucket: media\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
