package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pysugar/launcher-accounts/internal/db/models"
	"github.com/pysugar/launcher-accounts/internal/store"
	"github.com/pysugar/launcher-accounts/internal/util"
)

// Grant is a freshly minted credential from the identity provider.
type Grant struct {
	AccessToken  string
	RefreshToken string // empty when the provider did not rotate it
	ExpiresAt    time.Time
}

// Refresher performs the refresh_token exchange with the identity provider.
// Errors should wrap ErrInvalidRefreshToken, ErrMalformedResponse or
// ErrNetworkFailure; anything else is treated as a network failure.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
}

// refreshResult is what an exchange hands to every waiter.
type refreshResult struct {
	acc     models.Account
	skipped bool // due no longer held, nothing was exchanged
}

// refresh renews uuid's token if due still holds once the exchange starts.
// Concurrent calls for the same uuid share one exchange and one result. The
// exchange is detached from ctx: a caller giving up only stops waiting.
func (m *Manager) refresh(ctx context.Context, uuid string, due func(models.Account) bool) (refreshResult, error) {
	exchangeCtx := context.WithoutCancel(ctx)
	ch := m.inflight.DoChan(uuid, func() (any, error) {
		return m.exchange(exchangeCtx, uuid, due)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug().Str("account", uuid).Msg("🎫 Joined in-flight refresh")
		}
		if res.Err != nil {
			return refreshResult{}, res.Err
		}
		return res.Val.(refreshResult), nil
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}
}

func (m *Manager) exchange(ctx context.Context, uuid string, due func(models.Account) bool) (refreshResult, error) {
	snap, err := m.gate.Snapshot()
	if err != nil {
		return refreshResult{}, err
	}
	acc, ok := snap.Get(uuid)
	if !ok {
		return refreshResult{}, ErrAccountNotFound
	}
	// Another exchange may have finished between the caller's check and this one.
	if !due(acc) {
		return refreshResult{acc: acc, skipped: true}, nil
	}
	if !acc.HasRefreshToken() {
		return refreshResult{}, ErrReauthenticationRequired
	}

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	log.Info().Str("account", uuid).Str("username", acc.Username).Msg("🔄 Refreshing access token")
	grant, err := m.refresher.Refresh(ctx, acc.RefreshToken)
	if err == nil && (grant == nil || grant.AccessToken == "" || grant.ExpiresAt.IsZero()) {
		err = fmt.Errorf("%w: empty access token or expiry", ErrMalformedResponse)
	}
	if err != nil {
		return refreshResult{}, m.refreshFailed(ctx, acc, err)
	}

	superseded := false
	updated, err := store.Mutate(m.gate, func(s *store.Store) (models.Account, error) {
		cur, ok := s.Get(uuid)
		if !ok {
			// Removed while the exchange was running; do not resurrect it.
			return models.Account{}, ErrAccountNotFound
		}
		// A sign-in replaced the credentials meanwhile; the grant belongs to the old ones.
		if replacedSince(cur, acc) {
			superseded = true
			return cur, store.ErrNoChange
		}
		cur.AccessToken = grant.AccessToken
		if grant.RefreshToken != "" && grant.RefreshToken != cur.RefreshToken {
			log.Info().Str("account", uuid).Msg("🔄 Rotating refresh token")
			cur.RefreshToken = grant.RefreshToken
		}
		cur.ExpiresAt = grant.ExpiresAt
		cur.LastUsed = m.now()
		s.Accounts[uuid] = cur
		return cur, nil
	})
	if superseded {
		log.Info().Str("account", uuid).Msg("🎫 Credentials replaced during refresh, discarding grant")
		return refreshResult{acc: updated}, nil
	}
	if err != nil {
		return refreshResult{}, err
	}

	m.record(ctx, uuid, models.EventRefreshed, "expires "+updated.ExpiresAt.UTC().Format(time.RFC3339))
	log.Info().
		Str("account", uuid).
		Str("token", util.MaskToken(updated.AccessToken)).
		Time("expires", updated.ExpiresAt).
		Msg("✅ Refreshed access token")
	return refreshResult{acc: updated}, nil
}

// replacedSince reports whether cur holds different credentials than sent,
// the account the exchange started from.
func replacedSince(cur, sent models.Account) bool {
	return cur.RefreshToken != sent.RefreshToken ||
		cur.AccessToken != sent.AccessToken ||
		!cur.AddedAt.Equal(sent.AddedAt)
}

// refreshFailed classifies err, downgrades the account on a rejected refresh
// token and returns the error handed to every waiter.
func (m *Manager) refreshFailed(ctx context.Context, acc models.Account, err error) error {
	switch {
	case errors.Is(err, ErrInvalidRefreshToken):
		log.Warn().Err(err).Str("account", acc.UUID).Msg("🔒 Refresh token rejected, sign-in required")
		m.record(ctx, acc.UUID, models.EventRefreshRejected, err.Error())
		downgrade := m.gate.Update(func(s *store.Store) error {
			cur, ok := s.Get(acc.UUID)
			// Only drop the token this exchange used; a newer sign-in may have replaced it.
			if !ok || replacedSince(cur, acc) {
				return store.ErrNoChange
			}
			cur.RefreshToken = ""
			s.Accounts[acc.UUID] = cur
			return nil
		})
		if downgrade != nil {
			log.Error().Err(downgrade).Str("account", acc.UUID).Msg("❌ Failed to mark account for re-authentication")
		}
		return err

	case errors.Is(err, ErrMalformedResponse):
		log.Error().Err(err).Str("account", acc.UUID).Msg("❌ Malformed token response")
		m.record(ctx, acc.UUID, models.EventRefreshMalformed, err.Error())
		return err

	default:
		if !errors.Is(err, ErrNetworkFailure) {
			err = fmt.Errorf("%w: %w", ErrNetworkFailure, err)
		}
		log.Warn().Err(err).Str("account", acc.UUID).Msg("⏳ Transient refresh failure")
		m.record(ctx, acc.UUID, models.EventRefreshFailed, err.Error())
		return err
	}
}
