package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

type stubChangeRequestRepo struct {
	requests  map[string]*models.ChangeRequest
	seq       int
	createErr error
	saveErr   error
	counts    map[models.ChangeRequestStatus]int
	filter    models.ChangeRequestFilter
}

func newStubChangeRequestRepo(requests ...models.ChangeRequest) *stubChangeRequestRepo {
	repo := &stubChangeRequestRepo{requests: map[string]*models.ChangeRequest{}}
	for i := range requests {
		cr := requests[i]
		repo.requests[cr.ID] = &cr
	}
	return repo
}

func (s *stubChangeRequestRepo) Create(ctx context.Context, cr *models.ChangeRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	cr.ID = fmt.Sprintf("p-%d", s.seq)
	cr.Status = models.ChangeRequestPending
	cr.CreatedAt = time.Now()
	copy := *cr
	s.requests[cr.ID] = &copy
	return nil
}

func (s *stubChangeRequestRepo) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	if cr, ok := s.requests[id]; ok {
		copy := *cr
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubChangeRequestRepo) LockByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	return s.FindByID(ctx, id)
}

func (s *stubChangeRequestRepo) HasPending(ctx context.Context, wargaID string) (bool, error) {
	for _, cr := range s.requests {
		if cr.WargaID == wargaID && cr.Status == models.ChangeRequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubChangeRequestRepo) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error) {
	s.filter = filter
	var out []models.ChangeRequest
	for _, cr := range s.requests {
		if filter.UserID != "" && cr.UserID != filter.UserID {
			continue
		}
		out = append(out, *cr)
	}
	return out, len(out), nil
}

func (s *stubChangeRequestRepo) CountByStatus(ctx context.Context) (map[models.ChangeRequestStatus]int, error) {
	return s.counts, nil
}

func (s *stubChangeRequestRepo) SaveResolution(ctx context.Context, cr *models.ChangeRequest) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	copy := *cr
	s.requests[cr.ID] = &copy
	return nil
}

type changeRequestFixture struct {
	svc       *ChangeRequestService
	repo      *stubChangeRequestRepo
	residents *stubResidentRepo
	audit     *recordingAudit
	metrics   *MetricsService
}

var reviewTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newChangeRequestFixture(requests ...models.ChangeRequest) *changeRequestFixture {
	f := &changeRequestFixture{
		repo: newStubChangeRequestRepo(requests...),
		residents: newStubResidentRepo(
			sampleResident("w-1", "3273011705900001", strPtr(wargaUserID)),
			sampleResident("w-2", "3273011705900002", strPtr(neighbourUserID)),
		),
		audit:   &recordingAudit{},
		metrics: NewMetricsService(),
	}
	f.svc = NewChangeRequestService(f.repo, f.residents, f.audit, &noopTx{}, nil, f.metrics, NewValidator(), zap.NewNop(),
		WithChangeRequestClock(func() time.Time { return reviewTime }))
	return f
}

func pendingRequest(id, wargaID, userID string, changes models.FieldChanges) models.ChangeRequest {
	return models.ChangeRequest{
		ID:      id,
		WargaID: wargaID,
		UserID:  userID,
		Changes: changes,
		Status:  models.ChangeRequestPending,
		Warga:   &models.ResidentRef{ID: wargaID, NamaLengkap: "Siti Aminah"},
	}
}

func outcomeCount(m *MetricsService, outcome string) float64 {
	return testutil.ToFloat64(m.changeRequests.WithLabelValues(outcome))
}

func TestChangeRequestSubmitKeepsEditableFieldsOnly(t *testing.T) {
	f := newChangeRequestFixture()

	cr, err := f.svc.Submit(context.Background(), wargaActor, dto.SubmitChangeRequest{
		Changes: map[string]string{
			"alamat":       "  Jl. Kenanga No. 9 ",
			"nik":          "9999999999999999",
			"nama_lengkap": "Someone Else",
		},
		Reason: "pindah rumah",
	})
	require.NoError(t, err)
	assert.Equal(t, "w-1", cr.WargaID)
	assert.Equal(t, models.FieldChanges{"alamat": "Jl. Kenanga No. 9"}, cr.Changes)
	assert.Equal(t, models.ChangeRequestPending, cr.Status)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionCreate, f.audit.entries[0].Action)
	assert.Equal(t, models.ModelPengajuan, f.audit.entries[0].ModelType)
	assert.Equal(t, "Mengajukan perubahan data untuk warga: Siti Aminah", f.audit.entries[0].Description)
	assert.Equal(t, 1.0, outcomeCount(f.metrics, OutcomeSubmitted))
}

func TestChangeRequestSubmitRejectsEmptyChanges(t *testing.T) {
	f := newChangeRequestFixture()

	_, err := f.svc.Submit(context.Background(), wargaActor, dto.SubmitChangeRequest{
		Changes: map[string]string{"nik": "9999999999999999"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, appErrors.Fields(err), "data_perubahan")
	assert.Empty(t, f.repo.requests)
	assert.Equal(t, 1.0, outcomeCount(f.metrics, OutcomeInvalid))
}

func TestChangeRequestSubmitValidatesValues(t *testing.T) {
	f := newChangeRequestFixture()

	_, err := f.svc.Submit(context.Background(), wargaActor, dto.SubmitChangeRequest{
		Changes: map[string]string{"rt": "0001", "kode_pos": "123456", "pekerjaan": "Petani"},
	})
	require.Error(t, err)
	fields := appErrors.Fields(err)
	assert.Equal(t, "must be at most 3 characters", fields["rt"])
	assert.Equal(t, "must be at most 5 characters", fields["kode_pos"])
	assert.NotContains(t, fields, "pekerjaan")
}

func TestChangeRequestSubmitOnePendingPerResident(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-0", "w-1", wargaUserID, models.FieldChanges{"rt": "003"}))

	_, err := f.svc.Submit(context.Background(), wargaActor, dto.SubmitChangeRequest{
		Changes: map[string]string{"alamat": "Jl. Baru"},
	})
	assert.True(t, errors.Is(err, appErrors.ErrPendingExists))
	assert.Len(t, f.repo.requests, 1)
	assert.Empty(t, f.audit.entries)
	assert.Equal(t, 1.0, outcomeCount(f.metrics, OutcomeConflict))
}

func TestChangeRequestSubmitRaceLosesOnUniqueIndex(t *testing.T) {
	f := newChangeRequestFixture()
	f.repo.createErr = &pq.Error{Code: "23505", Constraint: "pengajuan_warga_one_pending"}

	_, err := f.svc.Submit(context.Background(), wargaActor, dto.SubmitChangeRequest{
		Changes: map[string]string{"alamat": "Jl. Baru"},
	})
	assert.True(t, errors.Is(err, appErrors.ErrPendingExists))
}

func TestChangeRequestSubmitRequiresLinkedWarga(t *testing.T) {
	f := newChangeRequestFixture()

	_, err := f.svc.Submit(context.Background(), models.Actor{UserID: unlinkedUserID, Role: models.RoleWarga}, dto.SubmitChangeRequest{
		Changes: map[string]string{"alamat": "Jl. Baru"},
	})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Submit(context.Background(), adminActor, dto.SubmitChangeRequest{
		Changes: map[string]string{"alamat": "Jl. Baru"},
	})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestChangeRequestApproveMergesIntoResident(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Kenanga No. 9", "rt": "003"}))

	cr, err := f.svc.Approve(context.Background(), adminActor, "p-1", "  sesuai KK ")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestApproved, cr.Status)
	require.NotNil(t, cr.Review)
	assert.Equal(t, adminUserID, cr.Review.ReviewerID)
	assert.Equal(t, "sesuai KK", cr.Review.Note)
	assert.Equal(t, reviewTime, cr.Review.ReviewedAt)

	resident := f.residents.residents["w-1"]
	assert.Equal(t, "Jl. Kenanga No. 9", resident.Alamat)
	assert.Equal(t, "003", resident.RT)
	assert.Equal(t, "Guru", resident.Pekerjaan)

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, models.AuditActionApprove, f.audit.entries[0].Action)
	assert.Equal(t, models.ModelPengajuan, f.audit.entries[0].ModelType)
	assert.Equal(t, "Menyetujui pengajuan perubahan data untuk warga: Siti Aminah", f.audit.entries[0].Description)
	assert.Equal(t, models.AuditActionUpdate, f.audit.entries[1].Action)
	assert.Equal(t, models.ModelWarga, f.audit.entries[1].ModelType)
	assert.Equal(t, "w-1", f.audit.entries[1].ModelID)
	assert.Equal(t, 1.0, outcomeCount(f.metrics, OutcomeApproved))
}

func TestChangeRequestReviewHappensOnce(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}))

	_, err := f.svc.Approve(context.Background(), adminActor, "p-1", "")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), adminActor, "p-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyReviewed))
	_, err = f.svc.Reject(context.Background(), adminActor, "p-1", "duplikat")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyReviewed))

	assert.Len(t, f.audit.entries, 2)
	assert.Equal(t, 2.0, outcomeCount(f.metrics, OutcomeConflict))
}

func TestChangeRequestRejectResolvedWithoutNote(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}))

	_, err := f.svc.Approve(context.Background(), adminActor, "p-1", "")
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), adminActor, "p-1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyReviewed))
	assert.Empty(t, appErrors.Fields(err))

	_, err = f.svc.Reject(context.Background(), wargaActor, "p-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestChangeRequestApproveLostRaceIsConflict(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}))
	f.repo.saveErr = sql.ErrNoRows

	_, err := f.svc.Approve(context.Background(), adminActor, "p-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyReviewed))
}

func TestChangeRequestApproveInvalidMergeStaysPending(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"kelurahan": ""}))

	_, err := f.svc.Approve(context.Background(), adminActor, "p-1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, appErrors.Fields(err), "kelurahan")

	assert.Equal(t, models.ChangeRequestPending, f.repo.requests["p-1"].Status)
	assert.Equal(t, "Sukajadi", f.residents.residents["w-1"].Kelurahan)
	assert.Empty(t, f.audit.entries)
}

func TestChangeRequestApproveIgnoresUntouchedFields(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}))
	legacy := f.residents.residents["w-1"]
	legacy.UserID = strPtr("legacy-account")
	legacy.NoTelepon = "+62 812-3456-7890-123"

	cr, err := f.svc.Approve(context.Background(), adminActor, "p-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestApproved, cr.Status)
	assert.Equal(t, "Jl. Baru", f.residents.residents["w-1"].Alamat)
	assert.Len(t, f.audit.entries, 2)
}

func TestChangeRequestRejectRequiresNote(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}))

	_, err := f.svc.Reject(context.Background(), adminActor, "p-1", "   ")
	require.Error(t, err)
	assert.Contains(t, appErrors.Fields(err), "catatan_admin")

	cr, err := f.svc.Reject(context.Background(), adminActor, "p-1", "alamat tidak sesuai KTP")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestRejected, cr.Status)
	assert.Equal(t, "alamat tidak sesuai KTP", cr.Review.Note)
	assert.Equal(t, "Jl. Melati No. 4", f.residents.residents["w-1"].Alamat)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionReject, f.audit.entries[0].Action)
	assert.Equal(t, "Menolak pengajuan perubahan data untuk warga: Siti Aminah", f.audit.entries[0].Description)
}

func TestChangeRequestReviewRequiresAdmin(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}))

	_, err := f.svc.Approve(context.Background(), wargaActor, "p-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.svc.Reject(context.Background(), wargaActor, "p-1", "tidak")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestChangeRequestReviewUnknownID(t *testing.T) {
	f := newChangeRequestFixture()

	_, err := f.svc.Approve(context.Background(), adminActor, "missing", "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestChangeRequestListScopesWarga(t *testing.T) {
	f := newChangeRequestFixture(
		pendingRequest("p-1", "w-1", wargaUserID, models.FieldChanges{"alamat": "Jl. Baru"}),
		pendingRequest("p-2", "w-2", neighbourUserID, models.FieldChanges{"rt": "004"}),
	)
	f.repo.counts = map[models.ChangeRequestStatus]int{models.ChangeRequestPending: 2}

	mine, err := f.svc.List(context.Background(), wargaActor, dto.ChangeRequestQuery{Search: "ignored"})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "p-1", mine.Items[0].ID)
	assert.Nil(t, mine.Counts)
	assert.Empty(t, f.repo.filter.Search)

	all, err := f.svc.List(context.Background(), adminActor, dto.ChangeRequestQuery{Status: "PENDING", Page: 1})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, 2, all.Counts[models.ChangeRequestPending])
	assert.Equal(t, models.ChangeRequestPending, f.repo.filter.Status)
	assert.Equal(t, 10, all.Pagination.PageSize)

	_, err = f.svc.List(context.Background(), adminActor, dto.ChangeRequestQuery{Status: "archived"})
	assert.Contains(t, appErrors.Fields(err), "status")
}

func TestChangeRequestGetOwnership(t *testing.T) {
	f := newChangeRequestFixture(pendingRequest("p-2", "w-2", neighbourUserID, models.FieldChanges{"rt": "004"}))

	_, err := f.svc.Get(context.Background(), wargaActor, "p-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	cr, err := f.svc.Get(context.Background(), adminActor, "p-2")
	require.NoError(t, err)
	assert.Equal(t, "w-2", cr.WargaID)
}
