package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/internal/app"
)

func TestMain(m *testing.M) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestInitAndInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtcbackend.yaml")
	execute(t, "init", "--config-file", path)

	cfg, err := app.LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.KeyPair.Private.Valid())

	out := execute(t, "info", "--config-file", path)
	assert.Contains(t, out, "public-key: "+cfg.KeyPair.Public.String())
	assert.Contains(t, out, "signal-channel: "+app.DefaultSignalChannel)

	RootCmd.SetArgs([]string{"init", "--config-file", path})
	assert.Error(t, RootCmd.Execute())
}

func TestDevicesFake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	out := execute(t, "devices", "--engine", "fake", "--config-file", path)
	assert.Equal(t, "audio:\n  fake-microphone\nvideo:\n  fake-camera\n", out)
}

func TestRunFake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	out := execute(t, "run", "--engine", "fake", "--config-file", path)
	assert.Contains(t, out, "offerer: signaling=stable reports=1")
	assert.Contains(t, out, "answerer: signaling=stable reports=1")
}

func TestRunFakeWithMedia(t *testing.T) {
	t.Cleanup(func() { runOptions.audio, runOptions.video = "", "" })

	path := filepath.Join(t.TempDir(), "missing.yaml")
	out := execute(t, "run", "--engine", "fake", "--config-file", path, "--audio", "fake-microphone", "--video", "fake-camera")
	assert.Contains(t, out, "offerer: sending stream fake-stream-1")
	assert.Contains(t, out, "offerer: signaling=stable reports=1")
}
