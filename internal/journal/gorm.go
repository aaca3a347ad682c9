package journal

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/database"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// EventModel is the database row for a journaled event.
type EventModel struct {
	Seq       uint64           `gorm:"primaryKey;autoIncrement"`
	SessionID string           `gorm:"type:varchar(128);index:idx_session_seq,priority:1;not null"`
	Type      string           `gorm:"type:varchar(64);not null"`
	Timestamp time.Time        `gorm:"not null"`
	Data      database.JSONMap `gorm:"type:text"`
	CreatedAt time.Time
}

func (EventModel) TableName() string {
	return "overlay_events"
}

func (m EventModel) toDomain() domain.Event {
	return domain.Event{
		Type:      domain.EventType(m.Type),
		Timestamp: m.Timestamp.UTC(),
		Data:      map[string]any(m.Data),
	}
}

// GormStore persists events through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the events table.
func (s *GormStore) Migrate() error {
	return database.AutoMigrate(s.db, &EventModel{})
}

func (s *GormStore) Append(ctx context.Context, sessionID string, e domain.Event) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	l := log.Ctx(ctx)

	model := &EventModel{
		SessionID: sessionID,
		Type:      string(e.Type),
		Timestamp: e.Timestamp.UTC(),
		Data:      database.JSONMap(e.Data),
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to append event")
		return err
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, sessionID string) ([]domain.Event, error) {
	l := log.Ctx(ctx)

	var models []EventModel
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to list events")
		return nil, err
	}

	events := make([]domain.Event, 0, len(models))
	for _, m := range models {
		events = append(events, m.toDomain())
	}
	return events, nil
}

func (s *GormStore) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&EventModel{}).Error
}

var _ Store = (*GormStore)(nil)
