package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newPaths(t *testing.T) (blob, salt string) {
	dir := t.TempDir()
	return filepath.Join(dir, "vault.blob"), filepath.Join(dir, "vault.salt")
}

func TestInit_ThenUnlock_RoundTrips(t *testing.T) {
	blob, salt := newPaths(t)

	v := New(blob, salt)
	require.NoError(t, v.Init("correct-horse-battery-staple"))
	require.NoError(t, v.Set("openai_api_key", "sk-test-123"))
	v.Close()

	v2 := New(blob, salt)
	require.NoError(t, v2.Unlock("correct-horse-battery-staple"))
	val, err := v2.Get("openai_api_key")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", val)
}

func TestUnlock_WrongPasswordFails(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)
	require.NoError(t, v.Init("right-password"))
	v.Close()

	v2 := New(blob, salt)
	err := v2.Unlock("wrong-password")
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestInit_RefusesExistingBlob(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)
	require.NoError(t, v.Init("pw"))

	v2 := New(blob, salt)
	require.Error(t, v2.Init("pw2"))
}

func TestOperations_RequireUnlock(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)

	_, err := v.Get("k")
	require.ErrorIs(t, err, ErrLocked)
	require.ErrorIs(t, v.Set("k", "v"), ErrLocked)
	require.ErrorIs(t, v.Delete("k"), ErrLocked)
	_, err = v.List()
	require.ErrorIs(t, err, ErrLocked)
}

func TestGet_MissingKey(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)
	require.NoError(t, v.Init("pw"))

	_, err := v.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_ReturnsSortedKeysOnly(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)
	require.NoError(t, v.Init("pw"))
	require.NoError(t, v.Set("zeta", "z"))
	require.NoError(t, v.Set("alpha", "a"))

	keys, err := v.List()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta"}, keys)
}

func TestDelete_RemovesKey(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)
	require.NoError(t, v.Init("pw"))
	require.NoError(t, v.Set("k", "v"))
	require.NoError(t, v.Delete("k"))

	_, err := v.Get("k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRotate_NewPasswordUnlocksAndOldDoesNot(t *testing.T) {
	blob, salt := newPaths(t)
	v := New(blob, salt)
	require.NoError(t, v.Init("old-password"))
	require.NoError(t, v.Set("k", "v"))
	require.NoError(t, v.Rotate("new-password"))
	v.Close()

	v2 := New(blob, salt)
	require.ErrorIs(t, v2.Unlock("old-password"), ErrAuthFailed)

	v3 := New(blob, salt)
	require.NoError(t, v3.Unlock("new-password"))
	val, err := v3.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", val)
}

func TestFingerprint_DeterministicForSameInputs(t *testing.T) {
	_, salt := newPaths(t)
	v := New(filepath.Join(filepath.Dir(salt), "blob"), salt)
	require.NoError(t, v.Init("pw"))

	fp1, err := Fingerprint("digest-1", salt, 1000)
	require.NoError(t, err)
	fp2, err := Fingerprint("digest-1", salt, 1000)
	require.NoError(t, err)
	require.Equal(t, fp1, fp2)

	fp3, err := Fingerprint("digest-2", salt, 1000)
	require.NoError(t, err)
	require.NotEqual(t, fp1, fp3)
}
