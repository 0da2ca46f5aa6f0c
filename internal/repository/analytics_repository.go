package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/database"
)

// Age bucket labels in display order.
var AgeGroupLabels = []string{"0-17", "18-25", "26-35", "36-45", "46-55", "56+"}

// PublicCounters aggregates the landing page figures computed from the warga table.
type PublicCounters struct {
	Total        int `db:"total"`
	Complete     int `db:"complete"`
	RTRWPairs    int `db:"rt_rw_pairs"`
	UpdatedToday int `db:"updated_today"`
	UpdatedWeek  int `db:"updated_week"`
	Productive   int `db:"productive"`
}

// AnalyticsRepository exposes read-only aggregate queries backing the dashboards.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// ResidentTotals counts residents by gender.
func (r *AnalyticsRepository) ResidentTotals(ctx context.Context) (models.ResidentTotals, error) {
	const query = `SELECT COUNT(*) AS total,
	COUNT(*) FILTER (WHERE jenis_kelamin = $1) AS male,
	COUNT(*) FILTER (WHERE jenis_kelamin = $2) AS female
	FROM warga`
	var totals models.ResidentTotals
	if err := database.Conn(ctx, r.db).GetContext(ctx, &totals, query, models.GenderMale, models.GenderFemale); err != nil {
		return totals, fmt.Errorf("query resident totals: %w", err)
	}
	return totals, nil
}

// RegistrationsSince counts residents created at or after since.
func (r *AnalyticsRepository) RegistrationsSince(ctx context.Context, since time.Time) (int, error) {
	return r.countSince(ctx, "warga", since)
}

// ActivitiesSince counts audit entries written at or after since.
func (r *AnalyticsRepository) ActivitiesSince(ctx context.Context, since time.Time) (int, error) {
	return r.countSince(ctx, "activity_logs", since)
}

func (r *AnalyticsRepository) countSince(ctx context.Context, table string, since time.Time) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE created_at >= $1", table)
	if err := database.Conn(ctx, r.db).GetContext(ctx, &n, query, since); err != nil {
		return 0, fmt.Errorf("count %s since: %w", table, err)
	}
	return n, nil
}

// DailyRegistrations returns per-day resident creation counts since the given day. Days
// without registrations are absent.
func (r *AnalyticsRepository) DailyRegistrations(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	return r.daily(ctx, "warga", since)
}

// DailyActivities returns per-day audit entry counts since the given day.
func (r *AnalyticsRepository) DailyActivities(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	return r.daily(ctx, "activity_logs", since)
}

func (r *AnalyticsRepository) daily(ctx context.Context, table string, since time.Time) ([]models.DailyCount, error) {
	query := fmt.Sprintf(`SELECT DATE(created_at) AS day, COUNT(*) AS count FROM %s
	WHERE created_at >= $1 GROUP BY DATE(created_at) ORDER BY day`, table)
	counts := make([]models.DailyCount, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("daily %s: %w", table, err)
	}
	return counts, nil
}

// RTDistribution counts residents per RT.
func (r *AnalyticsRepository) RTDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, "rt_distribution",
		`SELECT 'RT ' || rt AS label, COUNT(*) AS count FROM warga GROUP BY rt ORDER BY rt`)
}

// AgeGroups buckets residents by age at the given date.
func (r *AnalyticsRepository) AgeGroups(ctx context.Context, at time.Time) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, "age_groups", `SELECT bucket AS label, COUNT(*) AS count FROM (
		SELECT CASE
			WHEN a <= 17 THEN '0-17'
			WHEN a <= 25 THEN '18-25'
			WHEN a <= 35 THEN '26-35'
			WHEN a <= 45 THEN '36-45'
			WHEN a <= 55 THEN '46-55'
			ELSE '56+' END AS bucket
		FROM (SELECT DATE_PART('year', AGE($1::date, tanggal_lahir)) AS a FROM warga) ages
	) buckets GROUP BY bucket`, at)
}

// EducationDistribution counts residents per education level.
func (r *AnalyticsRepository) EducationDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, "education",
		`SELECT COALESCE(NULLIF(pendidikan, ''), 'Tidak Diketahui') AS label, COUNT(*) AS count
		FROM warga GROUP BY 1 ORDER BY count DESC, label`)
}

// MaritalStatusDistribution counts residents per marital status.
func (r *AnalyticsRepository) MaritalStatusDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, "marital_status",
		`SELECT status_perkawinan AS label, COUNT(*) AS count FROM warga GROUP BY status_perkawinan ORDER BY count DESC, label`)
}

// GenderByRT splits every RT's residents by gender.
func (r *AnalyticsRepository) GenderByRT(ctx context.Context) ([]models.GenderByRT, error) {
	const query = `SELECT rt,
	COUNT(*) FILTER (WHERE jenis_kelamin = $1) AS male,
	COUNT(*) FILTER (WHERE jenis_kelamin = $2) AS female
	FROM warga GROUP BY rt ORDER BY rt`
	rows := make([]models.GenderByRT, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, models.GenderMale, models.GenderFemale); err != nil {
		return nil, fmt.Errorf("query gender by rt: %w", err)
	}
	return rows, nil
}

// PublicCounters computes the landing page counters in one pass. A record counts as complete
// when every identity and address column is filled; productive age spans 20 to 45 years.
func (r *AnalyticsRepository) PublicCounters(ctx context.Context, now time.Time) (PublicCounters, error) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	const query = `SELECT COUNT(*) AS total,
	COUNT(*) FILTER (WHERE nik <> '' AND nama_lengkap <> '' AND alamat <> '' AND rt <> '' AND rw <> '') AS complete,
	COUNT(DISTINCT (rt, rw)) AS rt_rw_pairs,
	COUNT(*) FILTER (WHERE updated_at >= $1) AS updated_today,
	COUNT(*) FILTER (WHERE updated_at >= $2) AS updated_week,
	COUNT(*) FILTER (WHERE tanggal_lahir BETWEEN $3 AND $4) AS productive
	FROM warga`
	var c PublicCounters
	err := database.Conn(ctx, r.db).GetContext(ctx, &c, query,
		today, now.AddDate(0, 0, -7), now.AddDate(-45, 0, 0), now.AddDate(-20, 0, 0))
	if err != nil {
		return c, fmt.Errorf("query public counters: %w", err)
	}
	return c, nil
}

func (r *AnalyticsRepository) labelCounts(ctx context.Context, name, query string, args ...interface{}) ([]models.LabelCount, error) {
	rows := make([]models.LabelCount, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return rows, nil
}
