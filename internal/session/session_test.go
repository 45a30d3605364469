package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)

	_, err = s.Require()
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, s.Save("tok-1", "asha@example.com"))

	// a fresh store reads what the first one wrote
	other := NewFileStore(path)
	tok, err = other.Require()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	email, err := other.Email()
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", email)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Clear())
	tok, err = NewFileStore(path).Token()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Token()
	assert.ErrorContains(t, err, "decode session")
}
