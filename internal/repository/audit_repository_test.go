package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/warga-api/internal/models"
)

func TestAuditInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "a-1"
	entry := &models.AuditLog{
		UserID:      &userID,
		Action:      models.AuditActionApprove,
		ModelType:   models.ModelPengajuan,
		NewValues:   types.NullJSONText{JSONText: types.JSONText(`{"status":"approved"}`), Valid: true},
		Description: "Menyetujui PengajuanWarga",
	}
	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	from := time.Date(2026, 10, 1, 15, 30, 0, 0, time.UTC)
	to := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activity_logs l LEFT JOIN users u ON u.id = l.user_id WHERE l.action = $1 AND l.created_at >= $2 AND l.created_at < $3")).
		WithArgs("approve", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	cols := []string{"id", "user_id", "action", "model_type", "model_id", "old_values", "new_values", "description",
		"ip_address", "user_agent", "request_id", "created_at", "user_name", "user_email"}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY l.created_at DESC, l.id DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("log-1", "a-1", "approve", "PengajuanWarga", "cr-1", nil, []byte(`{"status":"approved"}`),
				"Menyetujui pengajuan perubahan data untuk warga: Budi", "10.0.0.1", "curl", "rid-1", now, "Pak RT", "rt@warga.id"))

	logs, total, err := repo.List(context.Background(), models.AuditFilter{
		Action:    models.AuditActionApprove,
		ModelType: models.ModelTypeAllFilter,
		DateFrom:  &from,
		DateTo:    &to,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].OldValues.Valid)
	assert.True(t, logs[0].NewValues.Valid)
	require.NotNil(t, logs[0].User)
	assert.Equal(t, "Pak RT", logs[0].User.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditDistinctActions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT action FROM activity_logs ORDER BY action")).
		WillReturnRows(sqlmock.NewRows([]string{"action"}).AddRow("approve").AddRow("create"))

	actions, err := repo.DistinctActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "create"}, actions)
}
