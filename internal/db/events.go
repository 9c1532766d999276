package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pysugar/launcher-accounts/internal/db/models"
)

const recordTimeout = 5 * time.Second

// EventLog persists token lifecycle events.
type EventLog struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEventLog wraps an initialized database.
func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db, now: time.Now}
}

// Record stores one event. Audit failures are logged and never surface to
// the operation being audited.
func (l *EventLog) Record(ctx context.Context, accountUUID, kind, detail string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	event := models.TokenEvent{
		ID:          uuid.New().String(),
		AccountUUID: accountUUID,
		Kind:        kind,
		Detail:      detail,
		Timestamp:   l.now().UnixMilli(),
	}
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Warn().Err(err).Str("account", accountUUID).Str("kind", kind).Msg("⚠️ Failed to record token event")
	}
}

// List returns the newest events for accountUUID, at most limit of them.
func (l *EventLog) List(ctx context.Context, accountUUID string, limit int) ([]models.TokenEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.TokenEvent
	err := l.db.WithContext(ctx).
		Where("account_uuid = ?", accountUUID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Prune deletes events older than cutoff and returns how many were removed.
func (l *EventLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("timestamp < ?", cutoff.UnixMilli()).
		Delete(&models.TokenEvent{})
	return res.RowsAffected, res.Error
}
