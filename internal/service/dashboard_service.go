package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/internal/repository"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

const (
	registrationTrendDays = 30
	activityTrendDays     = 7
)

type analyticsQuerier interface {
	ResidentTotals(ctx context.Context) (models.ResidentTotals, error)
	RegistrationsSince(ctx context.Context, since time.Time) (int, error)
	ActivitiesSince(ctx context.Context, since time.Time) (int, error)
	DailyRegistrations(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	DailyActivities(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	RTDistribution(ctx context.Context) ([]models.LabelCount, error)
	AgeGroups(ctx context.Context, at time.Time) ([]models.LabelCount, error)
	EducationDistribution(ctx context.Context) ([]models.LabelCount, error)
	MaritalStatusDistribution(ctx context.Context) ([]models.LabelCount, error)
	GenderByRT(ctx context.Context) ([]models.GenderByRT, error)
	PublicCounters(ctx context.Context, now time.Time) (repository.PublicCounters, error)
}

type changeRequestCounter interface {
	CountByStatus(ctx context.Context) (map[models.ChangeRequestStatus]int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// DashboardService composes the admin dashboard, the analytics charts and the public
// landing statistics. Every payload is cache-aside.
type DashboardService struct {
	analytics analyticsQuerier
	requests  changeRequestCounter
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs the service.
func NewDashboardService(analytics analyticsQuerier, requests changeRequestCounter, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &DashboardService{analytics: analytics, requests: requests, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Summary returns the headline counters. The bool reports a cache hit.
func (s *DashboardService) Summary(ctx context.Context) (*models.AdminSummary, bool, error) {
	var cached models.AdminSummary
	if s.cache.Get(ctx, dashboardSummaryKey, &cached) {
		return &cached, true, nil
	}

	now := s.now().In(s.cfg.Location)
	var (
		totals     models.ResidentTotals
		counts     map[models.ChangeRequestStatus]int
		activities int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.analytics.ResidentTotals(gctx)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.requests.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		activities, err = s.analytics.ActivitiesSince(gctx, startOfDay(now))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard summary")
	}

	summary := &models.AdminSummary{
		TotalWarga:       totals.Total,
		TotalLakiLaki:    totals.Male,
		TotalPerempuan:   totals.Female,
		PengajuanPending: counts[models.ChangeRequestPending],
		AktivitasHariIni: activities,
	}
	for _, n := range counts {
		summary.TotalPengajuan += n
	}

	s.cache.Set(ctx, dashboardSummaryKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Analytics returns chart data for the admin dashboard.
func (s *DashboardService) Analytics(ctx context.Context) (*models.Analytics, bool, error) {
	var cached models.Analytics
	if s.cache.Get(ctx, dashboardAnalytics, &cached) {
		return &cached, true, nil
	}

	now := s.now().In(s.cfg.Location)
	today := startOfDay(now)
	regFrom := today.AddDate(0, 0, -(registrationTrendDays - 1))
	actFrom := today.AddDate(0, 0, -(activityTrendDays - 1))

	var (
		out        = &models.Analytics{GeneratedAt: now.UTC()}
		regDaily   []models.DailyCount
		actDaily   []models.DailyCount
		ageGroups  []models.LabelCount
		statusCnt  map[models.ChangeRequestStatus]int
		realtime   = &out.Realtime
		weekStart  = now.AddDate(0, 0, -7)
		monthStart = now.AddDate(0, 0, -30)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		regDaily, err = s.analytics.DailyRegistrations(gctx, regFrom)
		return err
	})
	g.Go(func() (err error) {
		actDaily, err = s.analytics.DailyActivities(gctx, actFrom)
		return err
	})
	g.Go(func() (err error) {
		out.RTDistribution, err = s.analytics.RTDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		ageGroups, err = s.analytics.AgeGroups(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		out.Education, err = s.analytics.EducationDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.MaritalStatus, err = s.analytics.MaritalStatusDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		statusCnt, err = s.requests.CountByStatus(gctx)
		return err
	})
	windows := []struct {
		since         time.Time
		registrations *int
		activities    *int
	}{
		{today, &realtime.RegistrationsToday, &realtime.ActivitiesToday},
		{weekStart, &realtime.RegistrationsWeek, &realtime.ActivitiesWeek},
		{monthStart, &realtime.RegistrationsMonth, &realtime.ActivitiesMonth},
	}
	for _, w := range windows {
		g.Go(func() (err error) {
			*w.registrations, err = s.analytics.RegistrationsSince(gctx, w.since)
			return err
		})
		g.Go(func() (err error) {
			*w.activities, err = s.analytics.ActivitiesSince(gctx, w.since)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard analytics")
	}

	out.DailyRegistrations = fillDays(regDaily, regFrom, registrationTrendDays)
	out.ActivityTrend = fillDays(actDaily, actFrom, activityTrendDays)
	out.AgeGroups = orderedBuckets(ageGroups, repository.AgeGroupLabels)
	out.ChangeRequestStatus = []models.LabelCount{
		{Label: "Pending", Count: statusCnt[models.ChangeRequestPending]},
		{Label: "Diterima", Count: statusCnt[models.ChangeRequestApproved]},
		{Label: "Ditolak", Count: statusCnt[models.ChangeRequestRejected]},
	}

	s.cache.Set(ctx, dashboardAnalytics, out, s.cfg.CacheTTL)
	return out, false, nil
}

// PublicStats returns the unauthenticated landing page figures.
func (s *DashboardService) PublicStats(ctx context.Context) (*models.PublicStats, bool, error) {
	var cached models.PublicStats
	if s.cache.Get(ctx, dashboardPublicStats, &cached) {
		return &cached, true, nil
	}

	now := s.now().In(s.cfg.Location)
	var (
		counters repository.PublicCounters
		byRT     []models.GenderByRT
		totals   models.ResidentTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counters, err = s.analytics.PublicCounters(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		byRT, err = s.analytics.GenderByRT(gctx)
		return err
	})
	g.Go(func() (err error) {
		totals, err = s.analytics.ResidentTotals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build public statistics")
	}

	stats := &models.PublicStats{
		DataAkurat:          percent(counters.Complete, counters.Total),
		RTRWTerhubung:       counters.RTRWPairs,
		AktifHarian:         counters.UpdatedToday,
		PendudukAktif:       counters.Total,
		UsiaProduktif:       counters.Productive,
		UsiaProduktifPersen: percent(counters.Productive, counters.Total),
		PembaruanMingguIni:  counters.UpdatedWeek,
		GenderByRT:          make([]models.GenderByRT, 0, len(byRT)),
	}
	for _, row := range byRT {
		if row.Male == 0 && row.Female == 0 {
			continue
		}
		row.RT = "RT " + row.RT
		stats.GenderByRT = append(stats.GenderByRT, row)
	}
	if len(stats.GenderByRT) == 0 {
		stats.GenderByRT = append(stats.GenderByRT, models.GenderByRT{RT: "Total", Male: totals.Male, Female: totals.Female})
	}

	s.cache.Set(ctx, dashboardPublicStats, stats, s.cfg.CacheTTL)
	return stats, false, nil
}

// fillDays expands sparse per-day counts into a dense series starting at from.
func fillDays(rows []models.DailyCount, from time.Time, days int) []models.DailyCount {
	byDay := make(map[string]int, len(rows))
	for _, r := range rows {
		byDay[r.Date.Format("2006-01-02")] += r.Count
	}
	out := make([]models.DailyCount, days)
	for i := range out {
		day := from.AddDate(0, 0, i)
		out[i] = models.DailyCount{Date: day, Count: byDay[day.Format("2006-01-02")]}
	}
	return out
}

// orderedBuckets returns one entry per label in order, zero filling absent buckets.
func orderedBuckets(rows []models.LabelCount, labels []string) []models.LabelCount {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Label] = r.Count
	}
	out := make([]models.LabelCount, len(labels))
	for i, label := range labels {
		out[i] = models.LabelCount{Label: label, Count: counts[label]}
	}
	return out
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part) / float64(total) * 100)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
