package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"langtest_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageProvider(t *testing.T) {
	root := t.TempDir()
	p, err := NewStorageProvider(&config.StorageConfig{Type: "local", LocalPath: root})
	require.NoError(t, err)
	ctx := context.Background()

	url, err := p.Upload(ctx, "recordings/s1/q1.mp3", strings.NewReader("audio"), 5, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/recordings/s1/q1.mp3", url)

	data, err := os.ReadFile(filepath.Join(root, "recordings", "s1", "q1.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	src := filepath.Join(t.TempDir(), "tmp.wav")
	require.NoError(t, os.WriteFile(src, []byte("wave"), 0o644))
	_, err = p.UploadFile(ctx, "recordings/s1/q2.wav", src, "audio/wav")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "recordings", "s1", "q2.wav"))

	require.NoError(t, p.Delete(ctx, "recordings/s1/q1.mp3"))
	assert.NoFileExists(t, filepath.Join(root, "recordings", "s1", "q1.mp3"))
}

func TestLocalStorageRejectsEscape(t *testing.T) {
	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}

	_, err := p.Upload(context.Background(), "../outside.mp3", strings.NewReader("x"), 1, "audio/mpeg")
	assert.Error(t, err)
	assert.Error(t, p.Delete(context.Background(), "../../etc/passwd"))
}

func TestNewStorageProviderUnknown(t *testing.T) {
	_, err := NewStorageProvider(&config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestOSSStorageProvider(t *testing.T) {
	cfg := &config.StorageConfig{
		Type:         "oss",
		OSSEndpoint:  "https://oss-cn-hangzhou.aliyuncs.com",
		OSSAccessKey: "ak",
		OSSSecretKey: "sk",
		OSSBucket:    "langtest-media",
	}
	p, err := NewStorageProvider(cfg)
	require.NoError(t, err)
	require.IsType(t, &OSSStorageProvider{}, p)

	assert.Equal(t, "https://langtest-media.oss-cn-hangzhou.aliyuncs.com/recordings/s1/q1.mp3", p.GetURL("recordings/s1/q1.mp3"))
	assert.Equal(t, "https://langtest-media.oss-cn-hangzhou.aliyuncs.com/media/a.mp3", ResolveMediaURL(p, "media/a.mp3"))

	bare := &OSSStorageProvider{Config: &config.StorageConfig{OSSEndpoint: "oss-cn-beijing.aliyuncs.com/", OSSBucket: "b"}}
	assert.Equal(t, "https://b.oss-cn-beijing.aliyuncs.com/k", bare.GetURL("k"))
}

func TestResolveMediaURL(t *testing.T) {
	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: "uploads"}}

	assert.Equal(t, "", ResolveMediaURL(p, ""))
	assert.Equal(t, "https://cdn.example/a.mp3", ResolveMediaURL(p, "https://cdn.example/a.mp3"))
	assert.Equal(t, "/static/a.mp3", ResolveMediaURL(p, "/static/a.mp3"))
	assert.Equal(t, "/uploads/media/a.mp3", ResolveMediaURL(p, "media/a.mp3"))
	assert.Equal(t, "media/a.mp3", ResolveMediaURL(nil, "media/a.mp3"))
}
