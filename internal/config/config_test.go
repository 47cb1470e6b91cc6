package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "lis_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("SCHEDULING_DEFAULT_DURATION_MINUTES", "20")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "mongodb://localhost:27017/testdb", cfg.MongoDB.URI)
	require.Equal(t, "lis_test", cfg.MongoDB.Database)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, 20, cfg.Scheduling.DefaultDurationMinutes)
	require.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTokenTTL)
}

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SERVER_ENVIRONMENT", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Empty(t, cfg.MongoDB.URI)
	require.Empty(t, cfg.Redis.Addr())
	require.NotEmpty(t, cfg.JWT.Secret)
	require.Equal(t, "5001", cfg.Server.Port)
	require.Equal(t, "*/15 * * * *", cfg.Jobs.NoShowSpec)
	require.Equal(t, 30, cfg.Jobs.ExpiryWindowDays)
	require.Equal(t, "admin", cfg.Bootstrap.AdminUsername)
}

func TestLoadConfig_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SERVER_ENVIRONMENT", "production")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestKeycloakIssuer(t *testing.T) {
	k := KeycloakConfig{URL: "https://sso.example.org/", Realm: "lab"}
	require.Equal(t, "https://sso.example.org/realms/lab", k.Issuer())
	require.Empty(t, KeycloakConfig{}.Issuer())
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, https://b.example ,"))
	require.Nil(t, splitList(""))
}
