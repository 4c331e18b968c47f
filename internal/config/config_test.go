package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("TRANSLATION_PROVIDER", "")
	t.Setenv("TRANSLATION_TIMEOUT", "")
	t.Setenv("TRANSLATION_ENABLED", "")

	cfg := New()

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/muzz")
	assert.Equal(t, "none", cfg.Translation.Provider)
	assert.False(t, cfg.Translation.Enabled, "noop provider leaves translation off")
	assert.Equal(t, 3*time.Second, cfg.Translation.Timeout)
	assert.Equal(t, "50051", cfg.GRPC.Port)
}

func TestNew_SQLiteAndOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("TRANSLATION_TIMEOUT", "750ms")
	t.Setenv("TRANSLATION_ENABLED", "off")
	t.Setenv("REDIS_DB", "4")

	cfg := New()

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.DB.DSN)
	assert.Equal(t, 750*time.Millisecond, cfg.Translation.Timeout)
	assert.False(t, cfg.Translation.Enabled)
	assert.Equal(t, 4, cfg.Redis.DB)
}

func TestTranslationEnabledFollowsProvider(t *testing.T) {
	t.Setenv("TRANSLATION_PROVIDER", "libretranslate")
	t.Setenv("TRANSLATION_ENABLED", "")
	assert.True(t, New().Translation.Enabled)

	t.Setenv("TRANSLATION_ENABLED", "off")
	assert.False(t, New().Translation.Enabled)

	t.Setenv("TRANSLATION_PROVIDER", "noop")
	t.Setenv("TRANSLATION_ENABLED", "yes")
	assert.True(t, New().Translation.Enabled)
}

func TestGetDurationDefault_Invalid(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Second, getDurationDefault("SOME_TIMEOUT", time.Second))

	t.Setenv("SOME_TIMEOUT", "-2s")
	assert.Equal(t, time.Second, getDurationDefault("SOME_TIMEOUT", time.Second))
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"", "0", "no", "nope"} {
		assert.False(t, isTruthy(v), v)
	}
}

func TestGetListEnv(t *testing.T) {
	t.Setenv("HTTP_CORS_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, getListEnv("HTTP_CORS_ORIGINS"))

	t.Setenv("HTTP_CORS_ORIGINS", "")
	assert.Empty(t, getListEnv("HTTP_CORS_ORIGINS"))
}
