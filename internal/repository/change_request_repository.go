package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/database"
)

const changeRequestSelect = `SELECT p.id, p.warga_id, p.user_id, p.data_perubahan, p.alasan, p.status,
	p.admin_id, p.catatan_admin, p.reviewed_at, p.created_at, p.updated_at,
	w.nik AS warga_nik, w.nama_lengkap AS warga_nama,
	u.full_name AS user_name, u.email AS user_email, a.full_name AS admin_name
	FROM pengajuan_warga p
	LEFT JOIN warga w ON w.id = p.warga_id
	LEFT JOIN users u ON u.id = p.user_id
	LEFT JOIN users a ON a.id = p.admin_id`

type changeRequestRow struct {
	ID        string              `db:"id"`
	WargaID   string              `db:"warga_id"`
	UserID    string              `db:"user_id"`
	Changes   models.FieldChanges `db:"data_perubahan"`
	Reason    string              `db:"alasan"`
	Status    string              `db:"status"`
	AdminID   sql.NullString      `db:"admin_id"`
	Note      sql.NullString      `db:"catatan_admin"`
	Reviewed  sql.NullTime        `db:"reviewed_at"`
	CreatedAt time.Time           `db:"created_at"`
	UpdatedAt time.Time           `db:"updated_at"`
	WargaNIK  sql.NullString      `db:"warga_nik"`
	WargaNama sql.NullString      `db:"warga_nama"`
	UserName  sql.NullString      `db:"user_name"`
	UserEmail sql.NullString      `db:"user_email"`
	AdminName sql.NullString      `db:"admin_name"`
}

func (row changeRequestRow) toModel() models.ChangeRequest {
	cr := models.ChangeRequest{
		ID:        row.ID,
		WargaID:   row.WargaID,
		UserID:    row.UserID,
		Changes:   row.Changes,
		Reason:    row.Reason,
		Status:    models.ChangeRequestStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Reviewed.Valid {
		cr.Review = &models.Review{
			ReviewerID: row.AdminID.String,
			ReviewedAt: row.Reviewed.Time,
			Note:       row.Note.String,
		}
	}
	if row.WargaNIK.Valid {
		cr.Warga = &models.ResidentRef{ID: row.WargaID, NIK: row.WargaNIK.String, NamaLengkap: row.WargaNama.String}
	}
	if row.UserName.Valid {
		cr.Requester = &models.UserRef{ID: row.UserID, FullName: row.UserName.String, Email: row.UserEmail.String}
	}
	if row.AdminName.Valid {
		cr.Reviewer = &models.UserRef{ID: row.AdminID.String, FullName: row.AdminName.String}
	}
	return cr
}

// ChangeRequestRepository persists pengajuan_warga rows.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// Create inserts a pending change request.
func (r *ChangeRequestRepository) Create(ctx context.Context, cr *models.ChangeRequest) error {
	if cr.ID == "" {
		cr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cr.Status = models.ChangeRequestPending
	cr.Review = nil
	cr.CreatedAt = now
	cr.UpdatedAt = now

	const query = `INSERT INTO pengajuan_warga (id, warga_id, user_id, data_perubahan, alasan, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		cr.ID, cr.WargaID, cr.UserID, cr.Changes, cr.Reason, cr.Status, cr.CreatedAt, cr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create pengajuan: %w", err)
	}
	return nil
}

// FindByID fetches a change request with its resident and user summaries.
func (r *ChangeRequestRepository) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	return r.get(ctx, id, false)
}

// LockByID fetches a change request and locks its row for the surrounding transaction.
func (r *ChangeRequestRepository) LockByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	return r.get(ctx, id, true)
}

func (r *ChangeRequestRepository) get(ctx context.Context, id string, lock bool) (*models.ChangeRequest, error) {
	query := changeRequestSelect + " WHERE p.id = $1"
	if lock {
		query += " FOR UPDATE OF p"
	}
	var row changeRequestRow
	if err := database.Conn(ctx, r.db).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find pengajuan: %w", err)
	}
	cr := row.toModel()
	return &cr, nil
}

// HasPending reports whether the resident has an unresolved change request.
func (r *ChangeRequestRepository) HasPending(ctx context.Context, wargaID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM pengajuan_warga WHERE warga_id = $1 AND status = $2)`
	var exists bool
	if err := database.Conn(ctx, r.db).GetContext(ctx, &exists, query, wargaID, models.ChangeRequestPending); err != nil {
		return false, fmt.Errorf("check pending pengajuan: %w", err)
	}
	return exists, nil
}

// List returns change requests newest first with the total match count.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		conditions = append(conditions, fmt.Sprintf("(w.nik LIKE $%d OR LOWER(w.nama_lengkap) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize, 10, 100)
	q := database.Conn(ctx, r.db)

	var total int
	countQuery := "SELECT COUNT(*) FROM pengajuan_warga p LEFT JOIN warga w ON w.id = p.warga_id" + where
	if err := q.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pengajuan: %w", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY p.created_at DESC LIMIT %d OFFSET %d", changeRequestSelect, where, size, (page-1)*size)
	var rows []changeRequestRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pengajuan: %w", err)
	}
	out := make([]models.ChangeRequest, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, total, nil
}

// CountByStatus tallies change requests per status.
func (r *ChangeRequestRepository) CountByStatus(ctx context.Context) (map[models.ChangeRequestStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	const query = `SELECT status, COUNT(*) AS count FROM pengajuan_warga GROUP BY status`
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count pengajuan by status: %w", err)
	}
	counts := map[models.ChangeRequestStatus]int{
		models.ChangeRequestPending:  0,
		models.ChangeRequestApproved: 0,
		models.ChangeRequestRejected: 0,
	}
	for _, row := range rows {
		counts[models.ChangeRequestStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// SaveResolution persists a resolved request. The update only applies while the stored row
// is still pending; sql.ErrNoRows signals it was resolved concurrently.
func (r *ChangeRequestRepository) SaveResolution(ctx context.Context, cr *models.ChangeRequest) error {
	if cr.Review == nil {
		return fmt.Errorf("save pengajuan resolution: request %s has no review", cr.ID)
	}
	const query = `UPDATE pengajuan_warga SET status = $2, admin_id = $3, catatan_admin = $4, reviewed_at = $5, updated_at = $6
	WHERE id = $1 AND status = $7`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		cr.ID, cr.Status, cr.Review.ReviewerID, nullString(cr.Review.Note), cr.Review.ReviewedAt, cr.UpdatedAt,
		models.ChangeRequestPending)
	if err != nil {
		return fmt.Errorf("save pengajuan resolution: %w", err)
	}
	return requireAffected(result, "save pengajuan resolution")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
