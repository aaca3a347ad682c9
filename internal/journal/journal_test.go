package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/projector"
)

var t0 = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func sampleEvents() []domain.Event {
	return []domain.Event{
		{Type: domain.EventStreamOnline, Timestamp: t0, Data: map[string]any{"title": "Stream Title", "game": "Programming"}},
		{Type: domain.EventAlertCreated, Timestamp: t0.Add(time.Minute), Data: map[string]any{"id": "a1", "type": "alert"}},
		{Type: domain.EventAlertDismissed, Timestamp: t0.Add(2 * time.Minute), Data: map[string]any{"alert_id": "a1"}},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, "", sampleEvents()[0]), ErrEmptySession)

	for _, e := range sampleEvents() {
		require.NoError(t, store.Append(ctx, "s1", e))
	}
	require.NoError(t, store.Append(ctx, "s2", sampleEvents()[0]))

	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, e := range sampleEvents() {
		assert.Equal(t, e.Type, got[i].Type)
		assert.True(t, e.Timestamp.Equal(got[i].Timestamp))
	}
	assert.Equal(t, "Stream Title", got[0].String("title"))

	cutoff := t0.Add(time.Minute)
	since := projector.EventsSince(got, &cutoff)
	require.Len(t, since, 1)
	assert.Equal(t, domain.EventAlertDismissed, since[0].Type)

	final := projector.Project(got, domain.NewState(domain.ShowCoding))
	assert.Equal(t, domain.StatusOnline, final.Status)
	assert.Empty(t, final.Alerts)

	require.NoError(t, store.Delete(ctx, "s1"))
	got, err = store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.List(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStore_Limit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	for _, e := range sampleEvents() {
		require.NoError(t, store.Append(ctx, "s1", e))
	}
	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventAlertCreated, got[0].Type)
}

func TestGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewGormStore(db)
	if err := store.Migrate(); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	exerciseStore(t, store)
}
