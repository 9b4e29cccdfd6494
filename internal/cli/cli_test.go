// AngelaMos | 2026
// cli_test.go

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestHashPasswordFromArgument(t *testing.T) {
	out, err := execute(t, "", "hash-password", "motdepasse")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := core.VerifyPassword("motdepasse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordFromStdinAsJSON(t *testing.T) {
	out, err := execute(t, "secret\n", "--format", "json", "hash-password")
	require.NoError(t, err)

	var res hashResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	ok, err := core.VerifyPassword("secret", res.Hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordRejectsEmptyInput(t *testing.T) {
	_, err := execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "--format", "yaml", "hash-password", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
