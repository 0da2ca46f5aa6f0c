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

const residentColumns = `id, nik, nama_lengkap, jenis_kelamin, tempat_lahir, tanggal_lahir, agama, pendidikan,
	pekerjaan, status_perkawinan, alamat, rt, rw, kelurahan, kecamatan, kota, provinsi, kode_pos, no_telepon,
	user_id, created_at, updated_at`

// ResidentRepository persists warga records.
type ResidentRepository struct {
	db *sqlx.DB
}

// NewResidentRepository constructs the repository.
func NewResidentRepository(db *sqlx.DB) *ResidentRepository {
	return &ResidentRepository{db: db}
}

// List returns residents matching the filter, newest first, with the total match count.
func (r *ResidentRepository) List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(nik LIKE $%d OR LOWER(nama_lengkap) LIKE $%d OR LOWER(alamat) LIKE $%d)", n, n, n))
	}
	if filter.RT != "" {
		args = append(args, filter.RT)
		conditions = append(conditions, fmt.Sprintf("rt = $%d", len(args)))
	}
	if filter.RW != "" {
		args = append(args, filter.RW)
		conditions = append(conditions, fmt.Sprintf("rw = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize, 10, 100)
	q := database.Conn(ctx, r.db)

	var total int
	if err := q.GetContext(ctx, &total, "SELECT COUNT(*) FROM warga"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count warga: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM warga%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		residentColumns, where, size, (page-1)*size)
	residents := make([]models.Resident, 0, size)
	if err := q.SelectContext(ctx, &residents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list warga: %w", err)
	}
	return residents, total, nil
}

// ListAll returns every resident ordered by name.
func (r *ResidentRepository) ListAll(ctx context.Context) ([]models.Resident, error) {
	residents := make([]models.Resident, 0)
	query := fmt.Sprintf("SELECT %s FROM warga ORDER BY nama_lengkap ASC", residentColumns)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &residents, query); err != nil {
		return nil, fmt.Errorf("list all warga: %w", err)
	}
	return residents, nil
}

// FindByID fetches a resident by identifier.
func (r *ResidentRepository) FindByID(ctx context.Context, id string) (*models.Resident, error) {
	return r.get(ctx, "id", id, false)
}

// LockByID fetches a resident and locks the row until the surrounding transaction ends.
func (r *ResidentRepository) LockByID(ctx context.Context, id string) (*models.Resident, error) {
	return r.get(ctx, "id", id, true)
}

// FindByUserID fetches the resident linked to an account.
func (r *ResidentRepository) FindByUserID(ctx context.Context, userID string) (*models.Resident, error) {
	return r.get(ctx, "user_id", userID, false)
}

// LockByUserID is FindByUserID with a row lock.
func (r *ResidentRepository) LockByUserID(ctx context.Context, userID string) (*models.Resident, error) {
	return r.get(ctx, "user_id", userID, true)
}

func (r *ResidentRepository) get(ctx context.Context, column, value string, lock bool) (*models.Resident, error) {
	query := fmt.Sprintf("SELECT %s FROM warga WHERE %s = $1", residentColumns, column)
	if lock {
		query += " FOR UPDATE"
	}
	var resident models.Resident
	if err := database.Conn(ctx, r.db).GetContext(ctx, &resident, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find warga by %s: %w", column, err)
	}
	return &resident, nil
}

// NIKExists reports whether another resident already holds nik.
func (r *ResidentRepository) NIKExists(ctx context.Context, nik, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM warga WHERE nik = $1 AND id::text <> $2)`
	var exists bool
	if err := database.Conn(ctx, r.db).GetContext(ctx, &exists, query, nik, excludeID); err != nil {
		return false, fmt.Errorf("check nik: %w", err)
	}
	return exists, nil
}

// UserLinked reports whether an account is already linked to a resident other than excludeID.
func (r *ResidentRepository) UserLinked(ctx context.Context, userID, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM warga WHERE user_id = $1 AND id::text <> $2)`
	var linked bool
	if err := database.Conn(ctx, r.db).GetContext(ctx, &linked, query, userID, excludeID); err != nil {
		return false, fmt.Errorf("check linked user: %w", err)
	}
	return linked, nil
}

// Create inserts a resident.
func (r *ResidentRepository) Create(ctx context.Context, resident *models.Resident) error {
	if resident.ID == "" {
		resident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	resident.CreatedAt = now
	resident.UpdatedAt = now

	const query = `INSERT INTO warga (id, nik, nama_lengkap, jenis_kelamin, tempat_lahir, tanggal_lahir, agama, pendidikan,
	pekerjaan, status_perkawinan, alamat, rt, rw, kelurahan, kecamatan, kota, provinsi, kode_pos, no_telepon,
	user_id, created_at, updated_at)
	VALUES (:id, :nik, :nama_lengkap, :jenis_kelamin, :tempat_lahir, :tanggal_lahir, :agama, :pendidikan,
	:pekerjaan, :status_perkawinan, :alamat, :rt, :rw, :kelurahan, :kecamatan, :kota, :provinsi, :kode_pos, :no_telepon,
	:user_id, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, resident); err != nil {
		return fmt.Errorf("create warga: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of a resident.
func (r *ResidentRepository) Update(ctx context.Context, resident *models.Resident) error {
	resident.UpdatedAt = time.Now().UTC()
	const query = `UPDATE warga SET nik = :nik, nama_lengkap = :nama_lengkap, jenis_kelamin = :jenis_kelamin,
	tempat_lahir = :tempat_lahir, tanggal_lahir = :tanggal_lahir, agama = :agama, pendidikan = :pendidikan,
	pekerjaan = :pekerjaan, status_perkawinan = :status_perkawinan, alamat = :alamat, rt = :rt, rw = :rw,
	kelurahan = :kelurahan, kecamatan = :kecamatan, kota = :kota, provinsi = :provinsi, kode_pos = :kode_pos,
	no_telepon = :no_telepon, user_id = :user_id, updated_at = :updated_at
	WHERE id = :id`
	result, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, resident)
	if err != nil {
		return fmt.Errorf("update warga: %w", err)
	}
	return requireAffected(result, "update warga")
}

// Delete removes a resident.
func (r *ResidentRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM warga WHERE id = $1`, id)
	if database.IsInvalidText(err) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("delete warga: %w", err)
	}
	return requireAffected(result, "delete warga")
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalisePage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}
