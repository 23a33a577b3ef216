package keystore

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSealUnsealRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.key")
	store := NewLocalStore(path)

	assert.False(t, store.Exists())

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	require.NoError(t, store.Seal(priv, "correct horse battery staple"))
	assert.True(t, store.Exists())

	got, err := store.Unseal("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, priv, got)
}

func TestLocalStoreUnsealWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.key")
	store := NewLocalStore(path)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, store.Seal(priv, "the right passphrase"))

	_, err = store.Unseal("the wrong passphrase")
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestLocalStoreUnsealMissingFile(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "does-not-exist.key"))
	_, err := store.Unseal("anything")
	assert.Error(t, err)
}
