package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "tickets.db", cfg.Store.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.Tickets.CloseDelay())
	assert.Equal(t, 10*time.Minute, cfg.Setup.SessionTTL())
	assert.Empty(t, cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadLegacyGuildVariable(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("GUILD_ID", "1234")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "1234", cfg.Discord.GuildID)
}

func TestValidateRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateStore())
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateStore())

	cfg.Store.PostgresDSN = "postgres://localhost/tickets"
	assert.NoError(t, cfg.ValidateStore())
}

func TestValidateOpsNeedsSecret(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("OPS_HTTP_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Ops.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}
