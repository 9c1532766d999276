package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysugar/launcher-accounts/internal/db/models"
)

func sampleStore() *Store {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.Put(models.Account{
		UUID:         "u1",
		Username:     "Alice",
		AccessToken:  "tokA",
		RefreshToken: "refA",
		ExpiresAt:    base.Add(time.Hour),
		AddedAt:      base,
		LastUsed:     base.Add(time.Minute),
	})
	s.Put(models.Account{
		UUID:        "u2",
		Username:    "Bob",
		AccessToken: "tokB",
		ExpiresAt:   base.Add(2 * time.Hour),
		AddedAt:     base,
	})
	return s
}

func TestCodec_LoadMissingFileReturnsEmptyStore(t *testing.T) {
	c := NewCodec(filepath.Join(t.TempDir(), "accounts.json"))

	s, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, s.Accounts)
	assert.Empty(t, s.ActiveAccountUUID)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCodec(filepath.Join(t.TempDir(), "accounts.json"))
	want := sampleStore()

	require.NoError(t, c.Save(want))
	got, err := c.Load()
	require.NoError(t, err)

	assert.Equal(t, want.ActiveAccountUUID, got.ActiveAccountUUID)
	require.Len(t, got.Accounts, len(want.Accounts))
	for key, w := range want.Accounts {
		g := got.Accounts[key]
		assert.Equal(t, w.UUID, g.UUID)
		assert.Equal(t, w.Username, g.Username)
		assert.Equal(t, w.AccessToken, g.AccessToken)
		assert.Equal(t, w.RefreshToken, g.RefreshToken)
		assert.True(t, w.ExpiresAt.Equal(g.ExpiresAt), "expires_at for %s", key)
		assert.True(t, w.AddedAt.Equal(g.AddedAt), "added_at for %s", key)
		assert.True(t, w.LastUsed.Equal(g.LastUsed), "last_used for %s", key)
	}
}

func TestCodec_AbsentFieldsAreNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	c := NewCodec(path)
	s := New()
	s.Accounts["u1"] = models.Account{UUID: "u1", Username: "Alice", AccessToken: "tok"}

	require.NoError(t, c.Save(s))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"refresh_token": null`)
	assert.Contains(t, string(data), `"last_used": null`)
	assert.Contains(t, string(data), `"active_account_uuid": null`)
}

func TestCodec_IgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	raw := `{
  "accounts": {
    "u1": {"uuid": "u1", "username": "Alice", "access_token": "tok", "refresh_token": null,
           "expires_at": "2026-03-01T13:00:00Z", "added_at": "2026-03-01T12:00:00Z",
           "last_used": null, "skin_cache": "ignored"}
  },
  "active_account_uuid": "u1",
  "schema": 2
}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	s, err := NewCodec(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "u1", s.ActiveAccountUUID)
	assert.Equal(t, "Alice", s.Accounts["u1"].Username)
	assert.False(t, s.Accounts["u1"].HasRefreshToken())
	assert.True(t, s.Accounts["u1"].LastUsed.IsZero())
}

func TestCodec_CorruptFileIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts": {`), 0o600))

	_, err := NewCodec(path).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreCorrupt))

	// The corrupt file must survive for manual recovery.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"accounts": {`, string(data))
}

func TestCodec_RepairsDanglingActivePointer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	raw := `{"accounts": {"u2": {"uuid": "u2", "username": "Bob", "access_token": "t"}}, "active_account_uuid": "gone"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	s, err := NewCodec(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "u2", s.ActiveAccountUUID)
}

func TestCodec_CrashBeforeRenameKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	c := NewCodec(path)
	require.NoError(t, c.Save(sampleStore()))

	rename = func(string, string) error { return errors.New("killed") }
	t.Cleanup(func() { rename = os.Rename })

	next := sampleStore()
	next.Remove("u1")
	err := c.Save(next)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))

	got, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 2)
	assert.Equal(t, "u1", got.ActiveAccountUUID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be cleaned up")
}

func TestCodec_LeftoverTempFileDoesNotAffectLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	c := NewCodec(path)
	require.NoError(t, c.Save(sampleStore()))

	// A process killed after writing the temp file leaves it behind half written.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".accounts.json.123.tmp"), []byte(`{"acc`), 0o600))

	got, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 2)
}
