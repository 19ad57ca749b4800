package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "test-secret")
	unsetenv(t, "STORE_DRIVER")
	unsetenv(t, "CORS_ALLOWED_ORIGINS")
	unsetenv(t, "SERVER_ADDRESS")
	unsetenv(t, "APP_ENV")
	unsetenv(t, "UPLOAD_URL_TTL")
	unsetenv(t, "RESUME_URL_TTL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"http://localhost:8080", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.UploadURLTTL)
	assert.Equal(t, 15*time.Minute, cfg.ResumeURLTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://prolynk.app,https://www.prolynk.app")
	t.Setenv("UPLOAD_URL_TTL", "2m")
	t.Setenv("STORE_DRIVER", "dynamodb")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://prolynk.app", "https://www.prolynk.app"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.UploadURLTTL)
	assert.Equal(t, StoreDynamo, cfg.StoreDriver)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"jwt without secret", map[string]string{"AUTH_MODE": "jwt", "JWT_SECRET": ""}},
		{"unknown auth mode", map[string]string{"AUTH_MODE": "basic"}},
		{"mongo without uri", map[string]string{"AUTH_MODE": "firebase", "STORE_DRIVER": "mongo", "MONGO_URI": ""}},
		{"unknown object store", map[string]string{"AUTH_MODE": "firebase", "OBJECT_STORE": "ftp"}},
		{"empty bucket", map[string]string{"AUTH_MODE": "firebase", "OBJECT_STORE": "gcs", "S3_BUCKET": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
