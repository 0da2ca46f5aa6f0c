package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/database"
)

// AuditRepository appends to and reads from activity_logs. It never updates or deletes rows.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an entry.
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, user_id, action, model_type, model_id, old_values, new_values,
	description, ip_address, user_agent, request_id, created_at)
	VALUES (:id, :user_id, :action, :model_type, :model_id, :old_values, :new_values,
	:description, :ip_address, :user_agent, :request_id, :created_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

type auditRow struct {
	models.AuditLog
	UserName  sql.NullString `db:"user_name"`
	UserEmail sql.NullString `db:"user_email"`
}

// List returns entries matching the filter, newest first, with the total match count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if filter.UserID != "" {
		add("l.user_id::text = ?", filter.UserID)
	}
	if filter.Action != "" {
		add("l.action = ?", filter.Action)
	}
	if filter.ModelType != "" && filter.ModelType != models.ModelTypeAllFilter {
		add("l.model_type = ?", filter.ModelType)
	}
	if filter.DateFrom != nil {
		add("l.created_at >= ?", startOfDay(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		add("l.created_at < ?", startOfDay(*filter.DateTo).AddDate(0, 0, 1))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("(LOWER(l.description) LIKE ? OR LOWER(u.full_name) LIKE ? OR LOWER(u.email) LIKE ?)", "%"+strings.ToLower(s)+"%")
	}

	from := " FROM activity_logs l LEFT JOIN users u ON u.id = l.user_id"
	if len(conditions) > 0 {
		from += " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize, 20, 100)
	q := database.Conn(ctx, r.db)

	var total int
	if err := q.GetContext(ctx, &total, "SELECT COUNT(*)"+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT l.id, l.user_id, l.action, l.model_type, l.model_id, l.old_values, l.new_values,
	l.description, l.ip_address, l.user_agent, l.request_id, l.created_at,
	u.full_name AS user_name, u.email AS user_email%s
	ORDER BY l.created_at DESC, l.id DESC LIMIT %d OFFSET %d`, from, size, (page-1)*size)
	var rows []auditRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	logs := make([]models.AuditLog, len(rows))
	for i, row := range rows {
		logs[i] = row.AuditLog
		if row.UserName.Valid {
			logs[i].User = &models.AuditActor{Name: row.UserName.String, Email: row.UserEmail.String}
		}
	}
	return logs, total, nil
}

// DistinctActions returns every action present in the log.
func (r *AuditRepository) DistinctActions(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "action")
}

// DistinctModelTypes returns every model type present in the log.
func (r *AuditRepository) DistinctModelTypes(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "model_type")
}

func (r *AuditRepository) distinct(ctx context.Context, column string) ([]string, error) {
	values := make([]string, 0)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM activity_logs ORDER BY %s", column, column)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &values, query); err != nil {
		return nil, fmt.Errorf("distinct activity log %s: %w", column, err)
	}
	return values, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
