package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/internal/repository"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

type stubAnalytics struct {
	mu       sync.Mutex
	calls    int
	totals   models.ResidentTotals
	daily    []models.DailyCount
	ages     []models.LabelCount
	byRT     []models.GenderByRT
	counters repository.PublicCounters
	err      error
}

func (s *stubAnalytics) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubAnalytics) ResidentTotals(ctx context.Context) (models.ResidentTotals, error) {
	s.hit()
	return s.totals, s.err
}

func (s *stubAnalytics) RegistrationsSince(ctx context.Context, since time.Time) (int, error) {
	s.hit()
	return 2, nil
}

func (s *stubAnalytics) ActivitiesSince(ctx context.Context, since time.Time) (int, error) {
	s.hit()
	return 5, nil
}

func (s *stubAnalytics) DailyRegistrations(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	s.hit()
	return s.daily, nil
}

func (s *stubAnalytics) DailyActivities(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	s.hit()
	return nil, nil
}

func (s *stubAnalytics) RTDistribution(ctx context.Context) ([]models.LabelCount, error) {
	s.hit()
	return []models.LabelCount{{Label: "RT 001", Count: 3}}, nil
}

func (s *stubAnalytics) AgeGroups(ctx context.Context, at time.Time) ([]models.LabelCount, error) {
	s.hit()
	return s.ages, nil
}

func (s *stubAnalytics) EducationDistribution(ctx context.Context) ([]models.LabelCount, error) {
	s.hit()
	return nil, nil
}

func (s *stubAnalytics) MaritalStatusDistribution(ctx context.Context) ([]models.LabelCount, error) {
	s.hit()
	return nil, nil
}

func (s *stubAnalytics) GenderByRT(ctx context.Context) ([]models.GenderByRT, error) {
	s.hit()
	return s.byRT, nil
}

func (s *stubAnalytics) PublicCounters(ctx context.Context, now time.Time) (repository.PublicCounters, error) {
	s.hit()
	return s.counters, nil
}

type stubStatusCounter map[models.ChangeRequestStatus]int

func (s stubStatusCounter) CountByStatus(ctx context.Context) (map[models.ChangeRequestStatus]int, error) {
	return s, nil
}

var dashboardNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newDashboardService(analytics *stubAnalytics, counts stubStatusCounter, cache *CacheService) *DashboardService {
	svc := NewDashboardService(analytics, counts, cache, zap.NewNop(), DashboardServiceConfig{CacheTTL: time.Minute, Location: time.UTC})
	svc.now = func() time.Time { return dashboardNow }
	return svc
}

func TestDashboardSummary(t *testing.T) {
	analytics := &stubAnalytics{totals: models.ResidentTotals{Total: 10, Male: 6, Female: 4}}
	counts := stubStatusCounter{models.ChangeRequestPending: 2, models.ChangeRequestApproved: 3, models.ChangeRequestRejected: 1}
	svc := newDashboardService(analytics, counts, nil)

	summary, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.AdminSummary{
		TotalWarga:       10,
		TotalLakiLaki:    6,
		TotalPerempuan:   4,
		PengajuanPending: 2,
		TotalPengajuan:   6,
		AktivitasHariIni: 5,
	}, *summary)
}

func TestDashboardSummaryCacheAside(t *testing.T) {
	analytics := &stubAnalytics{totals: models.ResidentTotals{Total: 1}}
	memory := newMemoryCache()
	cache := NewCacheService(memory, nil, time.Minute, zap.NewNop(), true)
	svc := newDashboardService(analytics, stubStatusCounter{}, cache)

	_, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	calls := analytics.calls

	summary, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, summary.TotalWarga)
	assert.Equal(t, calls, analytics.calls)

	cache.InvalidateDashboard(context.Background())
	_, hit, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDashboardAnalyticsShapesSeries(t *testing.T) {
	analytics := &stubAnalytics{
		daily: []models.DailyCount{{Date: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), Count: 4}},
		ages:  []models.LabelCount{{Label: "56+", Count: 2}, {Label: "18-25", Count: 7}},
	}
	counts := stubStatusCounter{models.ChangeRequestApproved: 3}
	svc := newDashboardService(analytics, counts, nil)

	out, _, err := svc.Analytics(context.Background())
	require.NoError(t, err)

	require.Len(t, out.DailyRegistrations, 30)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), out.DailyRegistrations[0].Date)
	assert.Equal(t, 4, out.DailyRegistrations[28].Count)
	assert.Equal(t, 0, out.DailyRegistrations[29].Count)
	assert.Len(t, out.ActivityTrend, 7)

	require.Len(t, out.AgeGroups, len(repository.AgeGroupLabels))
	assert.Equal(t, models.LabelCount{Label: "0-17", Count: 0}, out.AgeGroups[0])
	assert.Equal(t, models.LabelCount{Label: "18-25", Count: 7}, out.AgeGroups[1])
	assert.Equal(t, models.LabelCount{Label: "56+", Count: 2}, out.AgeGroups[5])

	assert.Equal(t, []models.LabelCount{
		{Label: "Pending", Count: 0},
		{Label: "Diterima", Count: 3},
		{Label: "Ditolak", Count: 0},
	}, out.ChangeRequestStatus)
	assert.Equal(t, models.RealtimeCounts{
		RegistrationsToday: 2, RegistrationsWeek: 2, RegistrationsMonth: 2,
		ActivitiesToday: 5, ActivitiesWeek: 5, ActivitiesMonth: 5,
	}, out.Realtime)
}

func TestDashboardPublicStats(t *testing.T) {
	analytics := &stubAnalytics{
		counters: repository.PublicCounters{Total: 3, Complete: 2, RTRWPairs: 2, UpdatedToday: 1, UpdatedWeek: 3, Productive: 1},
		byRT: []models.GenderByRT{
			{RT: "001", Male: 1, Female: 1},
			{RT: "002", Male: 0, Female: 0},
		},
	}
	svc := newDashboardService(analytics, stubStatusCounter{}, nil)

	stats, _, err := svc.PublicStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 67.0, stats.DataAkurat)
	assert.Equal(t, 33.0, stats.UsiaProduktifPersen)
	assert.Equal(t, 3, stats.PendudukAktif)
	assert.Equal(t, []models.GenderByRT{{RT: "RT 001", Male: 1, Female: 1}}, stats.GenderByRT)
}

func TestDashboardPublicStatsFallsBackToTotal(t *testing.T) {
	analytics := &stubAnalytics{totals: models.ResidentTotals{Male: 0, Female: 0}}
	svc := newDashboardService(analytics, stubStatusCounter{}, nil)

	stats, _, err := svc.PublicStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.DataAkurat)
	assert.Equal(t, []models.GenderByRT{{RT: "Total"}}, stats.GenderByRT)
}

func TestDashboardQueryFailure(t *testing.T) {
	analytics := &stubAnalytics{err: errors.New("db down")}
	svc := newDashboardService(analytics, stubStatusCounter{}, nil)

	_, _, err := svc.Summary(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
