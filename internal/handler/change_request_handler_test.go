package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

type fakeChangeRequestSrv struct {
	submitted  dto.SubmitChangeRequest
	actor      models.Actor
	note       string
	list       *dto.ChangeRequestList
	err        error
	lastAction string
}

func (f *fakeChangeRequestSrv) Submit(_ context.Context, actor models.Actor, req dto.SubmitChangeRequest) (*models.ChangeRequest, error) {
	f.actor, f.submitted = actor, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChangeRequest{ID: "p-1", Changes: req.Changes, Status: models.ChangeRequestPending}, nil
}

func (f *fakeChangeRequestSrv) List(_ context.Context, actor models.Actor, q dto.ChangeRequestQuery) (*dto.ChangeRequestList, error) {
	f.actor = actor
	return f.list, f.err
}

func (f *fakeChangeRequestSrv) Get(_ context.Context, actor models.Actor, id string) (*models.ChangeRequest, error) {
	return &models.ChangeRequest{ID: id}, f.err
}

func (f *fakeChangeRequestSrv) Approve(_ context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error) {
	f.lastAction, f.note = "approve", note
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChangeRequest{ID: id, Status: models.ChangeRequestApproved}, nil
}

func (f *fakeChangeRequestSrv) Reject(_ context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error) {
	f.lastAction, f.note = "reject", note
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChangeRequest{ID: id, Status: models.ChangeRequestRejected}, nil
}

func changeRequestRouter(claims *models.JWTClaims, srv *fakeChangeRequestSrv) http.Handler {
	h := NewChangeRequestHandler(srv)
	r := newTestRouter(claims)
	r.GET("/pengajuan", h.List)
	r.POST("/pengajuan", h.Submit)
	r.GET("/pengajuan/:id", h.Get)
	r.POST("/pengajuan/:id/approve", h.Approve)
	r.POST("/pengajuan/:id/reject", h.Reject)
	return r
}

func TestChangeRequestHandlerSubmit(t *testing.T) {
	srv := &fakeChangeRequestSrv{}
	rec, env := perform(t, changeRequestRouter(wargaClaims, srv), http.MethodPost, "/pengajuan", map[string]interface{}{
		"data_perubahan": map[string]string{"alamat": "Jl. Baru"},
		"alasan":         "pindah",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", srv.actor.UserID)
	assert.Equal(t, models.RoleWarga, srv.actor.Role)
	assert.Equal(t, "Jl. Baru", srv.submitted.Changes["alamat"])

	var cr models.ChangeRequest
	require.NoError(t, json.Unmarshal(env.Data, &cr))
	assert.Equal(t, "p-1", cr.ID)
}

func TestChangeRequestHandlerSubmitConflict(t *testing.T) {
	srv := &fakeChangeRequestSrv{err: appErrors.ErrPendingExists}
	rec, env := perform(t, changeRequestRouter(wargaClaims, srv), http.MethodPost, "/pengajuan", map[string]interface{}{
		"data_perubahan": map[string]string{"alamat": "Jl. Baru"},
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PENDING_EXISTS", env.Error["code"])
}

func TestChangeRequestHandlerRejectValidation(t *testing.T) {
	srv := &fakeChangeRequestSrv{err: appErrors.Validation(appErrors.FieldErrors{"catatan_admin": "is required when rejecting"})}
	rec, env := perform(t, changeRequestRouter(adminClaims, srv), http.MethodPost, "/pengajuan/p-1/reject", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "reject", srv.lastAction)
	assert.Equal(t, "is required when rejecting", env.Details["catatan_admin"])
}

func TestChangeRequestHandlerApprovePassesNote(t *testing.T) {
	srv := &fakeChangeRequestSrv{}
	rec, _ := perform(t, changeRequestRouter(adminClaims, srv), http.MethodPost, "/pengajuan/p-1/approve", map[string]string{"catatan_admin": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approve", srv.lastAction)
	assert.Equal(t, "ok", srv.note)
}

func TestChangeRequestHandlerListIncludesCounts(t *testing.T) {
	srv := &fakeChangeRequestSrv{list: &dto.ChangeRequestList{
		Items:      []models.ChangeRequest{{ID: "p-1"}},
		Pagination: models.NewPagination(1, 10, 1),
		Counts:     map[models.ChangeRequestStatus]int{models.ChangeRequestPending: 1},
	}}
	rec, env := perform(t, changeRequestRouter(adminClaims, srv), http.MethodGet, "/pengajuan?status=pending", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), env.Pagination["total_count"])
	counts, ok := env.Meta["counts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), counts["pending"])
}

func TestChangeRequestHandlerRequiresAuth(t *testing.T) {
	rec, _ := perform(t, changeRequestRouter(nil, &fakeChangeRequestSrv{}), http.MethodGet, "/pengajuan", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
