package agentrun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIdentityGeneratesOnce(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateIdentity(dir)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrCreateIdentity(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLoadOrCreateIdentityTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, identityFileName), []byte("agent-fixed\n"), 0o644))

	id, err := LoadOrCreateIdentity(dir)
	require.NoError(t, err)
	require.Equal(t, "agent-fixed", id)
}
