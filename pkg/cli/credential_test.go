package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dshills/nodeflow/pkg/storage"
)

func TestIsOnlyWhitespace(t *testing.T) {
	assert.True(t, isOnlyWhitespace(nil))
	assert.True(t, isOnlyWhitespace([]byte(" \t\n")))
	assert.True(t, isOnlyWhitespace([]byte("  ")))
	assert.False(t, isOnlyWhitespace([]byte(" x ")))
	assert.False(t, isOnlyWhitespace([]byte{0xff}))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "******ghij", maskSecret("abcdefghij"))
}

func TestCredentialCommands(t *testing.T) {
	keyring.MockInit()
	setupConfigDir(t)

	out, err := executeCommand(t, "", "credential", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No credentials configured.")

	out, err = executeCommand(t, "s3cr3t-token\n", "credential", "add", "api-token", "--stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Credential 'api-token' added")

	secret, err := storage.NewKeyringCredentialStore(nil).Get("api-token")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-token", secret)

	out, err = executeCommand(t, "", "credential", "get", "api-token")
	require.NoError(t, err)
	assert.Contains(t, out, "********oken")
	assert.NotContains(t, out, "s3cr3t")

	out, err = executeCommand(t, "", "credential", "get", "api-token", "--show")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-token\n", out)

	// Overwrite is declined unless confirmed
	out, err = executeCommand(t, "n\n", "credential", "add", "api-token", "--value", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")

	_, err = executeCommand(t, "", "credential", "add", "api-token", "--value", "other", "--force")
	require.NoError(t, err)

	out, err = executeCommand(t, "", "credential", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "api-token")

	_, err = executeCommand(t, "", "credential", "remove", "api-token")
	require.NoError(t, err)
	_, err = executeCommand(t, "", "credential", "get", "api-token")
	assert.ErrorContains(t, err, "credential not found")
	_, err = executeCommand(t, "", "credential", "remove", "api-token")
	assert.ErrorContains(t, err, "credential not found")
}

func TestCredentialAdd_RejectsBadInput(t *testing.T) {
	keyring.MockInit()
	setupConfigDir(t)

	_, err := executeCommand(t, " \n", "credential", "add", "k", "--stdin")
	assert.ErrorContains(t, err, "whitespace")

	_, err = executeCommand(t, "\n", "credential", "add", "k", "--stdin")
	assert.ErrorContains(t, err, "cannot be empty")

	_, err = executeCommand(t, strings.Repeat("a", maxCredentialSize+1), "credential", "add", "k", "--stdin")
	assert.ErrorContains(t, err, "exceeds maximum size")

	_, err = executeCommand(t, "", "credential", "add", "k", "--stdin", "--value", "x")
	assert.Error(t, err)
}
