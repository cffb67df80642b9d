package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/relay"
	"github.com/opd-ai/stegrelay/steg"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte(""))
	require.NoError(t, err)

	assert.Nil(t, cfg.Relay)
	assert.Nil(t, cfg.Client)
	require.NotNil(t, cfg.Steg)
	assert.Equal(t, "single-plane", cfg.Steg.CapacityPolicy)
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestLoadRelay(t *testing.T) {
	cfg, err := Load([]byte(`
[Relay]
ListenAddr = "0.0.0.0:9000"
Noise = true
IdentityFile = "relay.toml"
MaxUsers = 12
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Relay)
	assert.Equal(t, DefaultWriteTimeout, cfg.Relay.WriteTimeout)

	key := [crypto.KeySize]byte{1}
	opts := cfg.Relay.Options(&key)
	assert.Equal(t, "0.0.0.0:9000", opts.ListenAddr)
	assert.Equal(t, 12, opts.MaxUsers)
	assert.Equal(t, 5*time.Second, opts.WriteTimeout)
	assert.Equal(t, &key, opts.StaticKey)
	assert.NoError(t, opts.Validate())
}

func TestLoadRelayDefaults(t *testing.T) {
	cfg, err := Load([]byte("[Relay]\n"))
	require.NoError(t, err)
	assert.Equal(t, relay.DefaultListenAddr, cfg.Relay.ListenAddr)

	key := [crypto.KeySize]byte{1}
	assert.Nil(t, cfg.Relay.Options(&key).StaticKey, "noise off ignores the key")
}

func TestLoadClient(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	cfg, err := Load([]byte(`
[Client]
RelayAddr = "127.0.0.1:7700"
RelayPublicKey = "` + crypto.FormatKey(kp.Public) + `"
Name = "alice"
IdentityFile = "alice.toml"
Carrier = "cover.png"
`))
	require.NoError(t, err)

	key, err := cfg.Client.RelayKey()
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, kp.Public, *key)
	assert.Equal(t, DefaultDialTimeout, cfg.Client.DialTimeout)
}

func TestLoadSteg(t *testing.T) {
	cfg, err := Load([]byte(`
[Steg]
CapacityPolicy = "all-planes"
LegacyImageFrame = true
DisableCompression = true
`))
	require.NoError(t, err)

	codec, err := cfg.Steg.CodecOptions()
	require.NoError(t, err)
	assert.Equal(t, steg.AllPlanes, codec.Policy)
	assert.True(t, codec.LegacyImageFrame)

	env, err := cfg.Steg.EnvelopeOptions()
	require.NoError(t, err)
	assert.False(t, env.Compress)
	assert.Equal(t, steg.AllPlanes, env.Steg.Policy)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "syntax", body: "[Relay"},
		{name: "unknown key", body: "[Relay]\nPort = 1\n"},
		{name: "noise without identity", body: "[Relay]\nNoise = true\n"},
		{name: "client without address", body: "[Client]\nName = \"a\"\nIdentityFile = \"a\"\nCarrier = \"c.png\"\n"},
		{name: "client without name", body: "[Client]\nRelayAddr = \"x:1\"\nIdentityFile = \"a\"\nCarrier = \"c.png\"\n"},
		{name: "client bad key", body: "[Client]\nRelayAddr = \"x:1\"\nName = \"a\"\nIdentityFile = \"a\"\nCarrier = \"c.png\"\nRelayPublicKey = \"zz\"\n"},
		{name: "policy", body: "[Steg]\nCapacityPolicy = \"most-planes\"\n"},
		{name: "log level", body: "[Logging]\nLevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stegrelay.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Logging]\nLevel = \"debug\"\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoggingApply(t *testing.T) {
	previous := logrus.GetLevel()
	defer func() {
		logrus.SetLevel(previous)
		logrus.SetOutput(os.Stderr)
	}()

	logPath := filepath.Join(t.TempDir(), "relay.log")
	l := &Logging{Level: "warn", File: logPath}
	closer, err := l.Apply()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	logrus.Warn("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
