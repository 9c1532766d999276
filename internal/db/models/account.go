package models

import "time"

// Account stores one signed-in game identity and its OAuth credentials.
type Account struct {
	UUID         string    // stable profile id, unique key in the store
	Username     string    // display name, may change between sign-ins
	AccessToken  string    // short-lived bearer credential
	RefreshToken string    // empty when the token cannot be refreshed
	ExpiresAt    time.Time // AccessToken must not be used after this instant
	AddedAt      time.Time
	LastUsed     time.Time // zero when never used
}

// HasRefreshToken reports whether the account can mint a new access token.
func (a Account) HasRefreshToken() bool {
	return a.RefreshToken != ""
}

// AccountSummary is the non-secret projection of an Account.
type AccountSummary struct {
	UUID     string     `json:"uuid"`
	Username string     `json:"username"`
	IsActive bool       `json:"is_active"`
	AddedAt  time.Time  `json:"added_at"`
	LastUsed *time.Time `json:"last_used"`
}

// Summary projects the account, dropping every credential field.
func (a Account) Summary(active bool) AccountSummary {
	s := AccountSummary{
		UUID:     a.UUID,
		Username: a.Username,
		IsActive: active,
		AddedAt:  a.AddedAt,
	}
	if !a.LastUsed.IsZero() {
		lastUsed := a.LastUsed
		s.LastUsed = &lastUsed
	}
	return s
}
