package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

type dashboardUserCounter interface {
	CountAll(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

type dashboardNoteCounter interface {
	CountAll(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	TotalDownloads(ctx context.Context) (int, error)
	PopularSubjects(ctx context.Context, limit int) ([]models.SubjectCount, error)
	Recent(ctx context.Context, limit int) ([]models.RecentNote, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const dashboardCacheKey = "dash:admin:stats"

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL        time.Duration
	PopularSubjects int
	RecentActivity  int
}

// DashboardService aggregates the admin dashboard numbers, cached in Redis
// because every admin landing page hits them.
type DashboardService struct {
	users  dashboardUserCounter
	notes  dashboardNoteCounter
	cache  statsCache
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(users dashboardUserCounter, notes dashboardNoteCounter, cache statsCache, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.PopularSubjects <= 0 {
		cfg.PopularSubjects = 5
	}
	if cfg.RecentActivity <= 0 {
		cfg.RecentActivity = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:  users,
		notes:  notes,
		cache:  cache,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
}

// Stats returns the dashboard aggregates and reports cache utilisation.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, bool, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, false, nil
}

// Invalidate drops the cached aggregates, called after destructive admin
// actions so the dashboard reflects them immediately.
func (s *DashboardService) Invalidate(ctx context.Context) {
	type deleter interface {
		Delete(ctx context.Context, key string) error
	}
	if d, ok := s.cache.(deleter); ok && d != nil {
		if err := d.Delete(ctx, dashboardCacheKey); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -7)

	totalUsers, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	newUsers, err := s.users.CountCreatedSince(ctx, monthStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count new users")
	}
	totalNotes, err := s.notes.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notes")
	}
	weeklyNotes, err := s.notes.CountCreatedSince(ctx, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weekly notes")
	}
	downloads, err := s.notes.TotalDownloads(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum downloads")
	}
	subjects, err := s.notes.PopularSubjects(ctx, s.cfg.PopularSubjects)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank subjects")
	}
	recent, err := s.notes.Recent(ctx, s.cfg.RecentActivity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent notes")
	}

	return &models.DashboardStats{
		TotalUsers:            totalUsers,
		TotalNotes:            totalNotes,
		TotalDownloads:        downloads,
		NewUsersThisMonth:     newUsers,
		NotesUploadedThisWeek: weeklyNotes,
		PopularSubjects:       subjects,
		RecentActivity:        recent,
		GeneratedAt:           now,
	}, nil
}
