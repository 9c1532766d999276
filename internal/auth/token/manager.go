package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/pysugar/launcher-accounts/internal/db/models"
	"github.com/pysugar/launcher-accounts/internal/store"
)

// DefaultRefreshTimeout bounds a single exchange with the identity provider.
const DefaultRefreshTimeout = 30 * time.Second

// EventRecorder receives account and token lifecycle events for auditing.
// Implementations must not block for long and handle their own failures.
type EventRecorder interface {
	Record(ctx context.Context, accountUUID, kind, detail string)
}

// Manager owns the account store and keeps every account's token usable.
type Manager struct {
	gate           *store.Gate
	refresher      Refresher
	events         EventRecorder
	skew           time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	inflight       singleflight.Group // one refresh exchange per account uuid
}

// Option configures a Manager.
type Option func(*Manager)

// WithSkew sets how long before expiry a token is treated as stale.
func WithSkew(d time.Duration) Option {
	return func(m *Manager) { m.skew = d }
}

// WithRefreshTimeout bounds each provider exchange.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithEventRecorder enables the audit trail.
func WithEventRecorder(r EventRecorder) Option {
	return func(m *Manager) { m.events = r }
}

// NewManager creates a manager over gate using refresher for token renewal.
func NewManager(gate *store.Gate, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		gate:           gate,
		refresher:      refresher,
		skew:           DefaultSkew,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddAccount inserts or overwrites the account for uuid. The first account
// added to a store without an active account becomes active.
func (m *Manager) AddAccount(uuid, username, accessToken, refreshToken string, expiresAt time.Time) error {
	const op = "add account"
	if uuid == "" {
		return wrapErr(op, uuid, fmt.Errorf("%w: uuid is required", ErrInvalidArgument))
	}

	now := m.now()
	err := m.gate.Update(func(s *store.Store) error {
		acc := models.Account{
			UUID:         uuid,
			Username:     username,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
			AddedAt:      now,
			LastUsed:     now,
		}
		// Signing in again keeps the original added_at.
		if existing, ok := s.Get(uuid); ok && !existing.AddedAt.IsZero() {
			acc.AddedAt = existing.AddedAt
		}
		s.Put(acc)
		return nil
	})
	if err != nil {
		return wrapErr(op, uuid, err)
	}

	m.record(context.Background(), uuid, models.EventAccountAdded, username)
	log.Info().Str("account", uuid).Str("username", username).Msg("➕ Account added")
	return nil
}

// RemoveAccount deletes uuid. Removing an unknown account is not an error.
func (m *Manager) RemoveAccount(uuid string) error {
	const op = "remove account"

	removed := false
	err := m.gate.Update(func(s *store.Store) error {
		removed = s.Remove(uuid)
		return nil
	})
	if err != nil {
		return wrapErr(op, uuid, err)
	}
	if removed {
		m.record(context.Background(), uuid, models.EventAccountRemoved, "")
		log.Info().Str("account", uuid).Msg("➖ Account removed")
	}
	return nil
}

// SetActiveAccount selects uuid for authenticated operations.
func (m *Manager) SetActiveAccount(uuid string) error {
	const op = "set active account"

	now := m.now()
	err := m.gate.Update(func(s *store.Store) error {
		if !s.Activate(uuid, now) {
			return ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		return wrapErr(op, uuid, err)
	}

	m.record(context.Background(), uuid, models.EventAccountActivated, "")
	log.Info().Str("account", uuid).Msg("🎫 Active account changed")
	return nil
}

// GetActiveAccount returns the active account, or nil when none is selected.
func (m *Manager) GetActiveAccount() (*models.Account, error) {
	snap, err := m.gate.Snapshot()
	if err != nil {
		return nil, wrapErr("get active account", "", err)
	}
	acc, ok := snap.Active()
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// GetAllAccounts lists every account without credentials, most recently used first.
func (m *Manager) GetAllAccounts() ([]models.AccountSummary, error) {
	snap, err := m.gate.Snapshot()
	if err != nil {
		return nil, wrapErr("list accounts", "", err)
	}
	return snap.Summaries(), nil
}

// AccountExists reports whether uuid is stored.
func (m *Manager) AccountExists(uuid string) (bool, error) {
	snap, err := m.gate.Snapshot()
	if err != nil {
		return false, wrapErr("account exists", uuid, err)
	}
	_, ok := snap.Get(uuid)
	return ok, nil
}

// GetValidToken returns a usable access token for uuid, refreshing it first
// when it is stale. Fresh tokens are served from memory without I/O.
func (m *Manager) GetValidToken(ctx context.Context, uuid string) (string, error) {
	const op = "get valid token"

	snap, err := m.gate.Snapshot()
	if err != nil {
		return "", wrapErr(op, uuid, err)
	}
	acc, ok := snap.Get(uuid)
	if !ok {
		return "", wrapErr(op, uuid, ErrAccountNotFound)
	}

	switch Classify(acc, m.now(), m.skew) {
	case Fresh:
		return acc.AccessToken, nil
	case Dead:
		return "", wrapErr(op, uuid, ErrReauthenticationRequired)
	}

	res, err := m.refresh(ctx, uuid, m.isStale)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			err = fmt.Errorf("%w: %w", ErrReauthenticationRequired, err)
		}
		return "", wrapErr(op, uuid, err)
	}
	return res.acc.AccessToken, nil
}

// Classify reports the freshness of uuid's stored token.
func (m *Manager) Classify(uuid string) (Freshness, error) {
	snap, err := m.gate.Snapshot()
	if err != nil {
		return Dead, wrapErr("classify", uuid, err)
	}
	acc, ok := snap.Get(uuid)
	if !ok {
		return Dead, wrapErr("classify", uuid, ErrAccountNotFound)
	}
	return Classify(acc, m.now(), m.skew), nil
}

// RefreshAccountToken renews uuid's token even if it is still fresh.
// A refresh already in flight for the same account is joined and counts,
// unless it turned out to have nothing to do; then a new exchange is started.
func (m *Manager) RefreshAccountToken(ctx context.Context, uuid string) error {
	always := func(models.Account) bool { return true }
	for {
		res, err := m.refresh(ctx, uuid, always)
		if err != nil || !res.skipped {
			return wrapErr("refresh token", uuid, err)
		}
		log.Debug().Str("account", uuid).Msg("🎫 Joined refresh was skipped, forcing a new one")
	}
}

// StartRefreshLoop refreshes tokens expiring within lookahead every interval
// until ctx is done.
func (m *Manager) StartRefreshLoop(ctx context.Context, interval, lookahead time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RefreshExpiring(ctx, lookahead)
			}
		}
	}()
	log.Info().Dur("interval", interval).Dur("lookahead", lookahead).Msg("🔄 Token refresh loop started")
}

// RefreshExpiring refreshes every refreshable account whose token expires
// within lookahead and returns how many succeeded. Failures are logged only.
func (m *Manager) RefreshExpiring(ctx context.Context, lookahead time.Duration) int {
	snap, err := m.gate.Snapshot()
	if err != nil {
		log.Error().Err(err).Msg("❌ Refresh loop cannot read account store")
		return 0
	}

	due := func(acc models.Account) bool {
		return acc.HasRefreshToken() && acc.ExpiresAt.Before(m.now().Add(lookahead))
	}

	refreshed := 0
	for uuid, acc := range snap.Accounts {
		if !due(acc) {
			continue
		}
		res, err := m.refresh(ctx, uuid, due)
		if err != nil {
			log.Warn().Err(err).Str("account", uuid).Msg("⚠️ Background refresh failed")
			continue
		}
		if !res.skipped {
			refreshed++
		}
	}
	return refreshed
}

func (m *Manager) isStale(acc models.Account) bool {
	return Classify(acc, m.now(), m.skew) != Fresh
}

func (m *Manager) record(ctx context.Context, uuid, kind, detail string) {
	if m.events == nil {
		return
	}
	m.events.Record(ctx, uuid, kind, detail)
}
