package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/warga-api/internal/models"
)

func TestAnalyticsResidentTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").
		WithArgs(models.GenderMale, models.GenderFemale).
		WillReturnRows(sqlmock.NewRows([]string{"total", "male", "female"}).AddRow(10, 6, 4))

	totals, err := repo.ResidentTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ResidentTotals{Total: 10, Male: 6, Female: 4}, totals)
}

func TestAnalyticsDailyRegistrations(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	since := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at >= $1 GROUP BY DATE(created_at)")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).AddRow(day, 3))

	counts, err := repo.DailyRegistrations(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 3, counts[0].Count)
}

func TestAnalyticsPublicCounters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	now := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(DISTINCT (rt, rw)) AS rt_rw_pairs")).
		WithArgs(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), now.AddDate(0, 0, -7), now.AddDate(-45, 0, 0), now.AddDate(-20, 0, 0)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "complete", "rt_rw_pairs", "updated_today", "updated_week", "productive"}).
			AddRow(20, 18, 4, 2, 5, 9))

	c, err := repo.PublicCounters(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 18, c.Complete)
	assert.Equal(t, 9, c.Productive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
