// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDirReturnsEmpty(t *testing.T) {
	secrets, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, secrets)
}

func TestLoad_ReadsTrimmedValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "translation-server-token"), []byte("  tok-123\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style-repository-token"), []byte("tok-456"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("nope"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("  \n"), 0o600))

	secrets, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"translation-server-token": "tok-123",
		"style-repository-token":   "tok-456",
	}, secrets)
}

func TestKeys_Sorted(t *testing.T) {
	keys := Keys(map[string]string{"b": "2", "a": "1", "c": "3"})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
