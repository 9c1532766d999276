package models

// Token lifecycle event kinds.
const (
	EventAccountAdded     = "account_added"
	EventAccountRemoved   = "account_removed"
	EventAccountActivated = "account_activated"
	EventRefreshed        = "refreshed"
	EventRefreshFailed    = "refresh_failed"
	EventRefreshRejected  = "refresh_rejected"
	EventRefreshMalformed = "refresh_malformed"
)

// TokenEvent is an audit record of an account or credential change
type TokenEvent struct {
	ID          string `gorm:"primaryKey" json:"id"`
	AccountUUID string `gorm:"index" json:"account_uuid"`
	Kind        string `gorm:"index" json:"kind"`
	Detail      string `json:"detail,omitempty"`
	Timestamp   int64  `gorm:"index" json:"timestamp"` // unix millis
}
