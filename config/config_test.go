package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(write(t, `
[transport]
type = "rtp"

[transport.peers]
"HOST (cam)" = "127.0.0.1:5960"

[[input.sources]]
name = "cam"
source_name = "HOST (cam)"

[[output.sources]]
type = "relay"
name = "again"
input = "cam"
`))
	require.NoError(t, err)

	assert.Equal("rtp", cfg.Transport.Type)
	assert.Equal(":5960", cfg.Transport.Bind)
	assert.Equal(500*time.Millisecond, cfg.Transport.KeepAlive)
	assert.Equal(2*time.Second, cfg.Transport.Timeout)
	assert.Equal("127.0.0.1:5960", cfg.Transport.Peers["HOST (cam)"])

	require.Len(t, cfg.Input.Sources, 1)
	assert.Equal("receiver", cfg.Input.Sources[0].Type)
	assert.Equal("highest", cfg.Input.Sources[0].Bandwidth)
	assert.Equal(2, cfg.Input.Sources[0].Channels)

	assert.Equal(32, cfg.Metadata.MaxPerTick)
	assert.Equal("drop_oldest", cfg.Metadata.DropPolicy)
	assert.Equal("Unreal Engine", cfg.Broadcast.Name)
	assert.Equal(1920, cfg.Broadcast.Width)
	assert.Equal("info", cfg.Control.LogLevel)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	_, err := Load(write(t, `
[transport]
type = "carrier-pigeon"
`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(write(t, `
[[output.sources]]
type = "relay"
name = "again"
input = "missing"
`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(write(t, `
[[input.sources]]
name = "a"
[[input.sources]]
name = "a"
`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
