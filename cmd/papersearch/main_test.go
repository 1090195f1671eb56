package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-search-go/pkg/token"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	humanOutput = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIDCommand(t *testing.T) {
	out, err := execute(t, "id", "https://arxiv.org/abs/1706.03762v7", "no id here")
	require.NoError(t, err)

	var results []idResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "1706.03762", results[0].ID)
	assert.True(t, results[0].Found)
	assert.False(t, results[1].Found)
}

func TestIDCommand_RequiresArgument(t *testing.T) {
	_, err := execute(t, "id")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt:\n  secret: test-secret\n  access_token_expire_hours: 1\n"), 0o600))

	out, err := execute(t, "token", "--config", path, "--subject", "alice")
	require.NoError(t, err)

	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	claims, err := token.NewJWTManager("test-secret", 1).VerifyToken(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, token.RoleAdmin, claims.Role)
}
