package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/internal/backend"
	"github.com/rtctunnel/rtcbackend/internal/crypt"
)

func TestConfigRoundTrip(t *testing.T) {
	kp, err := crypt.GenerateKeyPair()
	require.NoError(t, err)

	cfg := &Config{
		KeyPair:       kp,
		SignalChannel: "redis://localhost:6379/0",
		ICEServers: []ICEServer{
			{URLs: []string{"turn:turn.example.com:3478"}, Username: "user", Credential: "secret"},
		},
		DefaultLabel: "chat",
		Engine:       EngineFake,
		Pion:         Pion{LoopbackCandidates: true, UDPPortMin: 50000, UDPPortMax: 50100},
	}

	dir := t.TempDir()
	for _, name := range []string{"rtcbackend.yaml", "rtcbackend.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, cfg.Save(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, DefaultLabel, cfg.Label())
	assert.Equal(t, DefaultSignalChannel, cfg.Channel())
	assert.Equal(t, EnginePion, cfg.EngineName())
	assert.Empty(t, cfg.Configuration().ICEServers)
}

func TestConfigConfiguration(t *testing.T) {
	cfg := Config{ICEServers: []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}}
	assert.Equal(t, backend.Configuration{
		ICEServers: []backend.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}, cfg.Configuration())
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "bad-engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: libwebrtc\n"), 0600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "unknown engine")

	path = filepath.Join(dir, "bad-ports.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pion":{"udpportmin":10,"udpportmax":5}}`), 0600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "udp port range")

	path = filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
