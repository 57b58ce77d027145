package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/roster-sync/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 80, cfg.MaxPlayers)
	assert.Equal(t, 3*time.Second, cfg.TeleportDelay)
	assert.Equal(t, TransportMemory, cfg.Transport)
	assert.True(t, cfg.Authority)
	assert.Empty(t, cfg.ModeratorIDs)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("MAX_PLAYERS", "24")
	t.Setenv("TELEPORT_DELAY", "1500ms")
	t.Setenv("MODERATOR_IDS", "7,9")
	t.Setenv("TRANSPORT", "nats")
	t.Setenv("AUTHORITY", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 24, cfg.MaxPlayers)
	assert.Equal(t, 1500*time.Millisecond, cfg.TeleportDelay)
	assert.Equal(t, []int{7, 9}, cfg.ModeratorIDs)
	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.False(t, cfg.Authority)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("CREATOR_IDS=3\nADDR=:7000\n"), 0o600))
	t.Setenv("ADDR", ":9999")
	// Registered so t.Setenv restores (unsets) it after godotenv writes it.
	t.Setenv("CREATOR_IDS", "")
	os.Unsetenv("CREATOR_IDS")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, []int{3}, cfg.CreatorIDs)
}

func TestValidate(t *testing.T) {
	base := Config{MaxPlayers: 10, Transport: TransportMemory, Authority: true, LogLevel: "info"}
	require.NoError(t, base.Validate())

	bad := base
	bad.MaxPlayers = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Transport = "carrier-pigeon"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Authority = false
	assert.Error(t, bad.Validate(), "a lone follower never applies anything")
	bad.Transport = TransportNATS
	assert.NoError(t, bad.Validate())

	bad = base
	bad.LogLevel = "loud"
	assert.Error(t, bad.Validate())
}

func TestLoadLayout(t *testing.T) {
	def, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultLayout(), def)

	dir := t.TempDir()
	good := filepath.Join(dir, "map.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"regions": [{"name": "pit", "team_id": 2, "bounds": {"center": {"x": 1, "y": 0, "z": 0}, "extents": {"x": 2, "y": 2, "z": 2}}}],
		"anchors": [{}, {"position": {"x": 0, "y": 0, "z": 0}, "forward": {"x": 1, "y": 0, "z": 0}}]
	}`), 0o600))
	layout, err := LoadLayout(good)
	require.NoError(t, err)
	require.Len(t, layout.Regions, 1)
	assert.Equal(t, engine.TeamYellow, layout.Regions[0].TeamID)
	assert.True(t, layout.Regions[0].Bounds.Contains(engine.Vec3{X: 3}))

	badTeam := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badTeam, []byte(`{"regions": [{"team_id": 8}]}`), 0o600))
	_, err = LoadLayout(badTeam)
	assert.ErrorIs(t, err, engine.ErrInvalidTeam)

	_, err = LoadLayout(filepath.Join(dir, "nope.json"))
	assert.Error(t, err)
}
