package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/stegrelay/crypto"
)

func TestGenKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.toml")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--genkey", path})
	require.NoError(t, cmd.Execute())

	id, err := crypto.LoadIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.FormatKey(id.Box.Public), strings.TrimSpace(out.String()))

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--genkey", path})
	assert.Error(t, cmd.Execute(), "existing identity must not be overwritten")
}

func TestRunRelayUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stegrelay.toml")
	body := "[Relay]\nNoise = true\nIdentityFile = \"" + filepath.ToSlash(filepath.Join(dir, "relay.toml")) + "\"\n" +
		"[Logging]\nLevel = \"error\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", cfgPath, "--listen", "127.0.0.1:0"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	assert.Contains(t, out.String(), "stegrelay listening on 127.0.0.1:")
	_, err := os.Stat(filepath.Join(dir, "relay.toml"))
	assert.NoError(t, err, "identity is created on first start")
}

func TestRunRelayBadConfig(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.toml")})
	assert.Error(t, cmd.Execute())
}
