package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pysugar/launcher-accounts/internal/db/models"
)

// Store is the full persisted account state.
// ActiveAccountUUID is empty when no account is active; otherwise it names a key of Accounts.
type Store struct {
	Accounts          map[string]models.Account
	ActiveAccountUUID string
}

// New returns an empty store.
func New() *Store {
	return &Store{Accounts: make(map[string]models.Account)}
}

// Clone returns a deep copy. Account holds only values, so copying the map is enough.
func (s *Store) Clone() *Store {
	c := &Store{
		Accounts:          make(map[string]models.Account, len(s.Accounts)),
		ActiveAccountUUID: s.ActiveAccountUUID,
	}
	for k, v := range s.Accounts {
		c.Accounts[k] = v
	}
	return c
}

// Get returns the account stored under uuid.
func (s *Store) Get(uuid string) (models.Account, bool) {
	acc, ok := s.Accounts[uuid]
	return acc, ok
}

// Active returns the active account, if any.
func (s *Store) Active() (models.Account, bool) {
	if s.ActiveAccountUUID == "" {
		return models.Account{}, false
	}
	return s.Get(s.ActiveAccountUUID)
}

// Put inserts or overwrites acc. The first account put into a store without
// an active account becomes active.
func (s *Store) Put(acc models.Account) {
	s.Accounts[acc.UUID] = acc
	if s.ActiveAccountUUID == "" {
		s.ActiveAccountUUID = acc.UUID
	}
}

// Remove deletes uuid and reports whether it was present. When the removed
// account was active, the most recently used remaining account takes over.
func (s *Store) Remove(uuid string) bool {
	if _, ok := s.Accounts[uuid]; !ok {
		return false
	}
	delete(s.Accounts, uuid)
	if s.ActiveAccountUUID == uuid {
		s.ActiveAccountUUID = s.successor()
	}
	return true
}

// Activate makes uuid the active account and stamps its LastUsed.
func (s *Store) Activate(uuid string, now time.Time) bool {
	acc, ok := s.Accounts[uuid]
	if !ok {
		return false
	}
	acc.LastUsed = now
	s.Accounts[uuid] = acc
	s.ActiveAccountUUID = uuid
	return true
}

// Validate checks that the active pointer references an existing account.
func (s *Store) Validate() error {
	if s.ActiveAccountUUID == "" {
		return nil
	}
	if _, ok := s.Accounts[s.ActiveAccountUUID]; !ok {
		return fmt.Errorf("active account %s is not in the store", s.ActiveAccountUUID)
	}
	return nil
}

// Summaries lists every account, most recently used first.
// Accounts never used sort last; ties fall back to uuid order.
func (s *Store) Summaries() []models.AccountSummary {
	accounts := s.sorted()
	out := make([]models.AccountSummary, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Summary(acc.UUID == s.ActiveAccountUUID))
	}
	return out
}

func (s *Store) successor() string {
	accounts := s.sorted()
	if len(accounts) == 0 {
		return ""
	}
	return accounts[0].UUID
}

func (s *Store) sorted() []models.Account {
	accounts := make([]models.Account, 0, len(s.Accounts))
	for _, acc := range s.Accounts {
		accounts = append(accounts, acc)
	}
	slices.SortFunc(accounts, compareByLastUsed)
	return accounts
}

func compareByLastUsed(a, b models.Account) int {
	switch {
	case a.LastUsed.IsZero() && !b.LastUsed.IsZero():
		return 1
	case !a.LastUsed.IsZero() && b.LastUsed.IsZero():
		return -1
	case a.LastUsed.After(b.LastUsed):
		return -1
	case a.LastUsed.Before(b.LastUsed):
		return 1
	}
	return strings.Compare(a.UUID, b.UUID)
}
