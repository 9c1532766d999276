package token

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysugar/launcher-accounts/internal/db/models"
	"github.com/pysugar/launcher-accounts/internal/store"
)

func TestManager_AccountLifecycleScenario(t *testing.T) {
	r := &fakeRefresher{}
	m, _, _ := newTestManager(t, r)
	ctx := testContext(t)

	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "refA", baseTime.Add(time.Hour)))
	active, err := m.GetActiveAccount()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "u1", active.UUID)

	require.NoError(t, m.AddAccount("u2", "Bob", "tokB", "refB", baseTime.Add(time.Hour)))
	all, err := m.GetAllAccounts()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	active, err = m.GetActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, "u1", active.UUID, "first added account stays active")

	require.NoError(t, m.RemoveAccount("u1"))
	active, err = m.GetActiveAccount()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "u2", active.UUID)

	tok, err := m.GetValidToken(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "tokB", tok)
	assert.Zero(t, r.calls.Load(), "fresh token must not hit the network")
}

func TestManager_SetActiveAccount(t *testing.T) {
	m, clock, events := newTestManager(t, &fakeRefresher{})
	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "", baseTime.Add(time.Hour)))
	require.NoError(t, m.AddAccount("u2", "Bob", "tokB", "", baseTime.Add(time.Hour)))

	clock.Advance(time.Minute)
	callTime := clock.Now()
	require.NoError(t, m.SetActiveAccount("u2"))

	active, err := m.GetActiveAccount()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "u2", active.UUID)
	assert.False(t, active.LastUsed.Before(callTime))
	assert.Contains(t, events.Kinds(), models.EventAccountActivated)

	all, err := m.GetAllAccounts()
	require.NoError(t, err)
	assert.Equal(t, "u2", all[0].UUID, "most recently used first")
	assert.True(t, all[0].IsActive)
	assert.False(t, all[1].IsActive)
}

func TestManager_SetActiveAccountUnknown(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})
	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "", baseTime.Add(time.Hour)))

	err := m.SetActiveAccount("ghost")
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), "set active account")

	var lifecycleErr *Error
	require.True(t, errors.As(err, &lifecycleErr))
	assert.Equal(t, "ghost", lifecycleErr.UUID)

	active, err := m.GetActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, "u1", active.UUID)
}

func TestManager_RemoveAccount(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})

	require.NoError(t, m.RemoveAccount("ghost"), "removing an unknown account is idempotent")

	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "", baseTime.Add(time.Hour)))
	require.NoError(t, m.RemoveAccount("u1"))
	active, err := m.GetActiveAccount()
	require.NoError(t, err)
	assert.Nil(t, active)

	exists, err := m.AccountExists("u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManager_AddAccountOverwriteKeepsAddedAt(t *testing.T) {
	m, clock, _ := newTestManager(t, &fakeRefresher{})
	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "refA", baseTime.Add(time.Hour)))

	clock.Advance(time.Hour)
	require.NoError(t, m.AddAccount("u1", "Alice2", "tokA2", "refA2", clock.Now().Add(time.Hour)))

	all, err := m.GetAllAccounts()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Alice2", all[0].Username)
	assert.True(t, all[0].AddedAt.Equal(baseTime))

	tok, err := m.GetValidToken(testContext(t), "u1")
	require.NoError(t, err)
	assert.Equal(t, "tokA2", tok)
}

func TestManager_AddAccountRequiresUUID(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})
	err := m.AddAccount("", "nobody", "tok", "", baseTime)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_GetValidTokenErrors(t *testing.T) {
	m, clock, _ := newTestManager(t, &fakeRefresher{})
	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "", baseTime.Add(time.Hour)))

	_, err := m.GetValidToken(testContext(t), "ghost")
	require.ErrorIs(t, err, ErrAccountNotFound)

	clock.Advance(2 * time.Hour)
	_, err = m.GetValidToken(testContext(t), "u1")
	require.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "u1")
}

func TestManager_PersistsAcrossGates(t *testing.T) {
	r := &fakeRefresher{}
	m, _, _ := newTestManager(t, r)
	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "refA", baseTime.Add(time.Hour)))
	require.NoError(t, m.AddAccount("u2", "Bob", "tokB", "refB", baseTime.Add(time.Hour)))
	require.NoError(t, m.SetActiveAccount("u2"))

	reopened := NewManager(store.NewGate(store.NewCodec(m.gate.Path())), r)
	active, err := reopened.GetActiveAccount()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "u2", active.UUID)
	assert.Equal(t, "refB", active.RefreshToken)
}

func TestManager_ClassifyFollowsClock(t *testing.T) {
	m, clock, _ := newTestManager(t, &fakeRefresher{})
	require.NoError(t, m.AddAccount("u1", "Alice", "tokA", "refA", baseTime.Add(10*time.Minute)))
	require.NoError(t, m.AddAccount("u2", "Bob", "tokB", "", baseTime.Add(10*time.Minute)))

	f, err := m.Classify("u1")
	require.NoError(t, err)
	assert.Equal(t, Fresh, f)

	clock.Advance(9*time.Minute + 30*time.Second)
	f, err = m.Classify("u1")
	require.NoError(t, err)
	assert.Equal(t, Refreshable, f, "inside the skew window")

	f, err = m.Classify("u2")
	require.NoError(t, err)
	assert.Equal(t, Dead, f)

	_, err = m.Classify("ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
