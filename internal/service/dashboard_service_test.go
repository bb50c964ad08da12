package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

type mockUserCounter struct {
	total    int
	newUsers int
}

func (m *mockUserCounter) CountAll(ctx context.Context) (int, error) { return m.total, nil }
func (m *mockUserCounter) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return m.newUsers, nil
}

type mockNoteCounter struct {
	total     int
	weekly    int
	downloads int
	subjects  []models.SubjectCount
	recent    []models.RecentNote
	calls     int
}

func (m *mockNoteCounter) CountAll(ctx context.Context) (int, error) {
	m.calls++
	return m.total, nil
}
func (m *mockNoteCounter) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return m.weekly, nil
}
func (m *mockNoteCounter) TotalDownloads(ctx context.Context) (int, error) { return m.downloads, nil }
func (m *mockNoteCounter) PopularSubjects(ctx context.Context, limit int) ([]models.SubjectCount, error) {
	return m.subjects, nil
}
func (m *mockNoteCounter) Recent(ctx context.Context, limit int) ([]models.RecentNote, error) {
	return m.recent, nil
}

type memoryCache struct {
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func TestDashboardStatsComposesAggregates(t *testing.T) {
	users := &mockUserCounter{total: 120, newUsers: 8}
	notes := &mockNoteCounter{
		total: 45, weekly: 5, downloads: 300,
		subjects: []models.SubjectCount{{Subject: "Mathematics", Count: 12}},
		recent:   []models.RecentNote{{ID: "n1", Title: "Calculus", Subject: "Mathematics"}},
	}
	svc := NewDashboardService(users, notes, newMemoryCache(), zap.NewNop(), DashboardServiceConfig{})

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 120, stats.TotalUsers)
	assert.Equal(t, 45, stats.TotalNotes)
	assert.Equal(t, 300, stats.TotalDownloads)
	assert.Equal(t, 8, stats.NewUsersThisMonth)
	assert.Equal(t, 5, stats.NotesUploadedThisWeek)
	require.Len(t, stats.PopularSubjects, 1)
	assert.Equal(t, "Mathematics", stats.PopularSubjects[0].Subject)
}

func TestDashboardStatsServedFromCache(t *testing.T) {
	users := &mockUserCounter{total: 1}
	notes := &mockNoteCounter{total: 1}
	cache := newMemoryCache()
	svc := NewDashboardService(users, notes, cache, zap.NewNop(), DashboardServiceConfig{})

	_, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	firstCalls := notes.calls

	_, cached, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, firstCalls, notes.calls)
}

func TestDashboardInvalidateDropsCache(t *testing.T) {
	cache := newMemoryCache()
	svc := NewDashboardService(&mockUserCounter{}, &mockNoteCounter{}, cache, zap.NewNop(), DashboardServiceConfig{})

	_, _, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Contains(t, cache.entries, dashboardCacheKey)

	svc.Invalidate(context.Background())
	assert.NotContains(t, cache.entries, dashboardCacheKey)
}
