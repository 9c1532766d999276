package token

import (
	"time"

	"github.com/pysugar/launcher-accounts/internal/db/models"
)

// DefaultSkew is how long before expiry a token stops being handed out.
const DefaultSkew = 60 * time.Second

// Freshness classifies a stored credential at a point in time.
type Freshness int

const (
	// Fresh tokens can be used as-is.
	Fresh Freshness = iota
	// Refreshable tokens are expired or about to, and can be renewed.
	Refreshable
	// Dead tokens are expired with no way to renew them.
	Dead
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Refreshable:
		return "refreshable"
	case Dead:
		return "dead"
	}
	return "unknown"
}

// Classify decides whether acc's access token is usable at now.
// A token inside the skew window without a refresh token is Dead: it would
// expire mid-request and nothing can renew it.
func Classify(acc models.Account, now time.Time, skew time.Duration) Freshness {
	if acc.AccessToken != "" && now.Before(acc.ExpiresAt.Add(-skew)) {
		return Fresh
	}
	if acc.HasRefreshToken() {
		return Refreshable
	}
	return Dead
}
