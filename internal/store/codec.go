package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pysugar/launcher-accounts/internal/db/models"
)

// rename is swapped in tests to simulate a crash before the final rename.
var rename = os.Rename

// fileData is the on-disk shape of accounts.json.
type fileData struct {
	Accounts          map[string]accountRecord `json:"accounts"`
	ActiveAccountUUID *string                  `json:"active_account_uuid"`
}

type accountRecord struct {
	UUID         string     `json:"uuid"`
	Username     string     `json:"username"`
	AccessToken  string     `json:"access_token"`
	RefreshToken *string    `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
	AddedAt      *time.Time `json:"added_at"`
	LastUsed     *time.Time `json:"last_used"`
}

// Codec reads and writes the account store file.
type Codec struct {
	path string
}

// NewCodec returns a codec for the accounts file at path.
func NewCodec(path string) *Codec {
	return &Codec{path: path}
}

// Path returns the canonical file path.
func (c *Codec) Path() string {
	return c.path
}

// Load reads the store. A missing file yields an empty store.
func (c *Codec) Load() (*Store, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, c.path, err)
	}

	var file fileData
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrStoreCorrupt, c.path, err)
	}

	s := New()
	for key, rec := range file.Accounts {
		s.Accounts[key] = rec.toAccount(key)
	}
	if file.ActiveAccountUUID != nil {
		s.ActiveAccountUUID = *file.ActiveAccountUUID
	}
	if err := s.Validate(); err != nil {
		// Hand-edited files can leave a dangling pointer; repair rather than refuse.
		log.Warn().Err(err).Str("path", c.path).Msg("⚠️ Repairing dangling active account")
		s.ActiveAccountUUID = s.successor()
	}
	return s, nil
}

// Save replaces the accounts file with s. The content goes to a temporary
// file in the same directory which is then renamed over the canonical path,
// so readers see either the old or the new store and never a partial write.
func (c *Codec) Save(s *Store) error {
	data, err := json.MarshalIndent(toFileData(s), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrIO, err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %w", ErrIO, tmpPath, err)
	}
	if err := rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %w", ErrIO, tmpPath, err)
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func toFileData(s *Store) fileData {
	file := fileData{Accounts: make(map[string]accountRecord, len(s.Accounts))}
	for key, acc := range s.Accounts {
		file.Accounts[key] = fromAccount(acc)
	}
	if s.ActiveAccountUUID != "" {
		active := s.ActiveAccountUUID
		file.ActiveAccountUUID = &active
	}
	return file
}

func fromAccount(acc models.Account) accountRecord {
	rec := accountRecord{
		UUID:        acc.UUID,
		Username:    acc.Username,
		AccessToken: acc.AccessToken,
		ExpiresAt:   timePtr(acc.ExpiresAt),
		AddedAt:     timePtr(acc.AddedAt),
		LastUsed:    timePtr(acc.LastUsed),
	}
	if acc.RefreshToken != "" {
		rt := acc.RefreshToken
		rec.RefreshToken = &rt
	}
	return rec
}

// toAccount converts a record; the map key wins over the embedded uuid.
func (r accountRecord) toAccount(key string) models.Account {
	acc := models.Account{
		UUID:        key,
		Username:    r.Username,
		AccessToken: r.AccessToken,
	}
	if r.RefreshToken != nil {
		acc.RefreshToken = *r.RefreshToken
	}
	if r.ExpiresAt != nil {
		acc.ExpiresAt = *r.ExpiresAt
	}
	if r.AddedAt != nil {
		acc.AddedAt = *r.AddedAt
	}
	if r.LastUsed != nil {
		acc.LastUsed = *r.LastUsed
	}
	return acc
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
