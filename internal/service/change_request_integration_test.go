//go:build integration

package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/internal/repository"
	"github.com/noah-isme/warga-api/pkg/database"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("data_warga"),
		tcpostgres.WithUsername("warga"),
		tcpostgres.WithPassword("warga"),
		tcpostgres.WithInitScripts(filepath.Join("..", "..", "migrations", "0001_init.up.sql")),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedLinkedResident(t *testing.T, db *sqlx.DB) (userID, wargaID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, db.GetContext(ctx, &userID,
		`INSERT INTO users (email, password_hash, full_name, role) VALUES ($1, $2, $3, 'WARGA') RETURNING id`,
		"siti@warga.test", "x", "Siti Aminah"))

	resident := &models.Resident{
		NIK:              "3273015708900002",
		NamaLengkap:      "Siti Aminah",
		JenisKelamin:     "Perempuan",
		TempatLahir:      "Bandung",
		TanggalLahir:     time.Date(1990, 8, 17, 0, 0, 0, 0, time.UTC),
		Agama:            "Islam",
		StatusPerkawinan: "Menikah",
		Alamat:           "Jl. Melati 1",
		RT:               "001",
		RW:               "002",
		Kelurahan:        "Sukajadi",
		Kecamatan:        "Sukajadi",
		Kota:             "Bandung",
		Provinsi:         "Jawa Barat",
		UserID:           &userID,
	}
	require.NoError(t, repository.NewResidentRepository(db).Create(ctx, resident))
	return userID, resident.ID
}

func TestChangeRequestConcurrentSubmitAllowsOnePending(t *testing.T) {
	db := startPostgres(t)
	userID, wargaID := seedLinkedResident(t, db)

	svc := NewChangeRequestService(
		repository.NewChangeRequestRepository(db),
		repository.NewResidentRepository(db),
		NewAuditService(repository.NewAuditRepository(db), nil, nil),
		database.NewTxManager(db),
		nil, nil, nil, nil,
	)
	actor := models.Actor{UserID: userID, Role: models.RoleWarga, Name: "Siti Aminah"}

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), actor, dto.SubmitChangeRequest{
				Changes: map[string]string{"alamat": "Jl. Mawar 2"},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, appErrors.ErrPendingExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	var pending int
	require.NoError(t, db.Get(&pending, `SELECT COUNT(*) FROM pengajuan_warga WHERE warga_id = $1 AND status = 'pending'`, wargaID))
	assert.Equal(t, 1, pending)

	var audited int
	require.NoError(t, db.Get(&audited, `SELECT COUNT(*) FROM activity_logs WHERE model_type = $1`, models.ModelPengajuan))
	assert.Equal(t, 1, audited)
}

func TestChangeRequestApproveUpdatesResidentOnce(t *testing.T) {
	db := startPostgres(t)
	userID, wargaID := seedLinkedResident(t, db)

	var adminID string
	require.NoError(t, db.Get(&adminID,
		`INSERT INTO users (email, password_hash, full_name, role) VALUES ('admin@warga.test', 'x', 'Admin', 'ADMIN') RETURNING id`))

	svc := NewChangeRequestService(
		repository.NewChangeRequestRepository(db),
		repository.NewResidentRepository(db),
		NewAuditService(repository.NewAuditRepository(db), nil, nil),
		database.NewTxManager(db),
		nil, nil, nil, nil,
	)
	ctx := context.Background()
	cr, err := svc.Submit(ctx, models.Actor{UserID: userID, Role: models.RoleWarga}, dto.SubmitChangeRequest{
		Changes: map[string]string{"alamat": "Jl. Mawar 2"},
	})
	require.NoError(t, err)

	admin := models.Actor{UserID: adminID, Role: models.RoleAdmin, Name: "Admin"}
	_, err = svc.Approve(ctx, admin, cr.ID, "")
	require.NoError(t, err)

	_, err = svc.Reject(ctx, admin, cr.ID, "terlambat")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyReviewed)

	var alamat string
	require.NoError(t, db.Get(&alamat, `SELECT alamat FROM warga WHERE id = $1`, wargaID))
	assert.Equal(t, "Jl. Mawar 2", alamat)
}
