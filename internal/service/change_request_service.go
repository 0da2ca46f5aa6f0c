package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/database"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

const (
	maxReviewText          = 500
	onePendingConstraint   = "pengajuan_warga_one_pending"
	defaultChangeReqPage   = 10
	changeRequestStatusAll = "all"
)

type changeRequestStore interface {
	Create(ctx context.Context, cr *models.ChangeRequest) error
	FindByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	LockByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	HasPending(ctx context.Context, wargaID string) (bool, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error)
	CountByStatus(ctx context.Context) (map[models.ChangeRequestStatus]int, error)
	SaveResolution(ctx context.Context, cr *models.ChangeRequest) error
}

type residentLocker interface {
	LockByID(ctx context.Context, id string) (*models.Resident, error)
	LockByUserID(ctx context.Context, userID string) (*models.Resident, error)
	Update(ctx context.Context, resident *models.Resident) error
}

// ChangeRequestService runs the pengajuan workflow: residents submit proposed edits to
// their own record and administrators approve or reject them exactly once.
type ChangeRequestService struct {
	repo      changeRequestStore
	residents residentLocker
	audit     auditRecorder
	tx        transactor
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	pageSize  int
	now       func() time.Time
}

// ChangeRequestServiceOption configures the service.
type ChangeRequestServiceOption func(*ChangeRequestService)

// WithChangeRequestPageSize overrides the listing page size.
func WithChangeRequestPageSize(size int) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithChangeRequestClock overrides the clock used to stamp reviews.
func WithChangeRequestClock(now func() time.Time) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewChangeRequestService constructs the service with defaults.
func NewChangeRequestService(
	repo changeRequestStore,
	residents residentLocker,
	audit auditRecorder,
	tx transactor,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...ChangeRequestServiceOption,
) *ChangeRequestService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ChangeRequestService{
		repo:      repo,
		residents: residents,
		audit:     audit,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		pageSize:  defaultChangeReqPage,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit files a pending change request against the resident linked to the actor.
// Keys outside the editable allow-list are dropped silently.
func (s *ChangeRequestService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitChangeRequest) (*models.ChangeRequest, error) {
	if actor.Role != models.RoleWarga {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only warga accounts may submit change requests")
	}
	changes, err := s.sanitizeChanges(req.Changes)
	if err != nil {
		s.metrics.RecordChangeRequest(OutcomeInvalid)
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) > maxReviewText {
		return nil, fieldError("alasan", "must be at most 500 characters")
	}

	cr := &models.ChangeRequest{UserID: actor.UserID, Changes: changes, Reason: reason}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resident, err := s.residents.LockByUserID(ctx, actor.UserID)
		if err != nil {
			return storeError(err, "no warga record is linked to this account", "failed to load warga")
		}
		pending, err := s.repo.HasPending(ctx, resident.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending change requests")
		}
		if pending {
			return appErrors.ErrPendingExists
		}

		cr.WargaID = resident.ID
		if err := s.repo.Create(ctx, cr); err != nil {
			if database.IsUniqueViolation(err, onePendingConstraint) {
				return appErrors.ErrPendingExists
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
		}
		cr.Warga = &models.ResidentRef{ID: resident.ID, NIK: resident.NIK, NamaLengkap: resident.NamaLengkap}

		return s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionCreate,
			ModelType:   models.ModelPengajuan,
			ModelID:     cr.ID,
			New:         cr,
			Description: "Mengajukan perubahan data untuk warga: " + resident.NamaLengkap,
		})
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	s.metrics.RecordChangeRequest(OutcomeSubmitted)
	s.cache.InvalidateDashboard(ctx)
	s.logger.Info("change request submitted",
		zap.String("pengajuan_id", cr.ID),
		zap.String("warga_id", cr.WargaID),
		zap.Strings("fields", changeKeys(changes)))
	return cr, nil
}

// Approve merges the request's proposed values into the resident and resolves the request.
// Every proposed value must still satisfy its column rule; otherwise the request stays pending.
func (s *ChangeRequestService) Approve(ctx context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}

	var resolved *models.ChangeRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cr, err := s.lockPending(ctx, id)
		if err != nil {
			return err
		}
		note, err := reviewNote(note, false)
		if err != nil {
			return err
		}
		resident, err := s.residents.LockByID(ctx, cr.WargaID)
		if err != nil {
			return storeError(err, "warga not found", "failed to load warga")
		}

		if err := s.validateChanges(cr.Changes); err != nil {
			return err
		}
		residentBefore := *resident
		requestBefore := *cr

		resident.Apply(cr.Changes)
		if err := s.residents.Update(ctx, resident); err != nil {
			return storeError(err, "warga not found", "failed to update warga")
		}
		if err := s.resolve(ctx, cr, models.ChangeRequestApproved, actor, note); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionApprove,
			ModelType:   models.ModelPengajuan,
			ModelID:     cr.ID,
			Old:         requestBefore,
			New:         cr,
			Description: "Menyetujui pengajuan perubahan data untuk warga: " + resident.NamaLengkap,
		}); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionUpdate,
			ModelType:   models.ModelWarga,
			ModelID:     resident.ID,
			Old:         residentBefore,
			New:         resident,
			Description: "Memperbarui data warga melalui pengajuan yang disetujui: " + resident.NamaLengkap,
		}); err != nil {
			return err
		}
		resolved = cr
		return nil
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	s.metrics.RecordChangeRequest(OutcomeApproved)
	s.cache.InvalidateDashboard(ctx)
	s.logger.Info("change request approved", zap.String("pengajuan_id", id), zap.String("admin_id", actor.UserID))
	return resolved, nil
}

// Reject resolves the request without touching the resident. A note is mandatory.
func (s *ChangeRequestService) Reject(ctx context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}

	var resolved *models.ChangeRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cr, err := s.lockPending(ctx, id)
		if err != nil {
			return err
		}
		note, err := reviewNote(note, true)
		if err != nil {
			return err
		}
		before := *cr
		if err := s.resolve(ctx, cr, models.ChangeRequestRejected, actor, note); err != nil {
			return err
		}

		name := cr.WargaID
		if cr.Warga != nil {
			name = cr.Warga.NamaLengkap
		}
		if err := s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionReject,
			ModelType:   models.ModelPengajuan,
			ModelID:     cr.ID,
			Old:         before,
			New:         cr,
			Description: "Menolak pengajuan perubahan data untuk warga: " + name,
		}); err != nil {
			return err
		}
		resolved = cr
		return nil
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	s.metrics.RecordChangeRequest(OutcomeRejected)
	s.cache.InvalidateDashboard(ctx)
	s.logger.Info("change request rejected", zap.String("pengajuan_id", id), zap.String("admin_id", actor.UserID))
	return resolved, nil
}

// List returns change requests newest first. Administrators see every request and the
// per-status counts; a WARGA sees only the requests they submitted.
func (s *ChangeRequestService) List(ctx context.Context, actor models.Actor, q dto.ChangeRequestQuery) (*dto.ChangeRequestList, error) {
	filter := models.ChangeRequestFilter{Page: q.Page, PageSize: s.pageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if status := strings.ToLower(strings.TrimSpace(q.Status)); status != "" && status != changeRequestStatusAll {
		filter.Status = models.ChangeRequestStatus(status)
		if !filter.Status.Valid() {
			return nil, fieldError("status", "must be one of pending, approved, rejected")
		}
	}

	if actor.IsAdmin() {
		filter.Search = strings.TrimSpace(q.Search)
	} else {
		filter.UserID = actor.UserID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	result := &dto.ChangeRequestList{
		Items:      items,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, total),
	}
	if actor.IsAdmin() {
		if result.Counts, err = s.repo.CountByStatus(ctx); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count change requests")
		}
	}
	return result, nil
}

// Get returns one change request. A WARGA may only read their own.
func (s *ChangeRequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.ChangeRequest, error) {
	cr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "change request not found", "failed to load change request")
	}
	if !actor.IsAdmin() && cr.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own change requests")
	}
	return cr, nil
}

func (s *ChangeRequestService) sanitizeChanges(raw map[string]string) (models.FieldChanges, error) {
	changes := make(models.FieldChanges, len(raw))
	for key, value := range raw {
		key = strings.TrimSpace(key)
		if !models.IsEditableField(key) {
			continue
		}
		changes[key] = strings.TrimSpace(value)
	}
	if len(changes) == 0 {
		return nil, fieldError("data_perubahan", "must contain at least one editable field")
	}

	if err := s.validateChanges(changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// validateChanges checks each proposed value against its column rule. Columns the
// request does not touch are never re-checked.
func (s *ChangeRequestService) validateChanges(changes models.FieldChanges) error {
	fields := appErrors.FieldErrors{}
	for key, value := range changes {
		rule, ok := changeFieldRules[key]
		if !ok {
			continue
		}
		if err := s.validator.Var(value, rule); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fields[key] = fieldMessage(verrs[0])
				continue
			}
			fields[key] = "is invalid"
		}
	}
	if len(fields) > 0 {
		return appErrors.Validation(fields)
	}
	return nil
}

func requireReviewer(actor models.Actor) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators may review change requests")
	}
	return nil
}

// reviewNote runs once the request is known to be pending, so a stale review reports
// ALREADY_REVIEWED before any note problem.
func reviewNote(note string, required bool) (string, error) {
	note = strings.TrimSpace(note)
	if required && note == "" {
		return "", fieldError("catatan_admin", "is required when rejecting")
	}
	if utf8.RuneCountInString(note) > maxReviewText {
		return "", fieldError("catatan_admin", "must be at most 500 characters")
	}
	return note, nil
}

func (s *ChangeRequestService) lockPending(ctx context.Context, id string) (*models.ChangeRequest, error) {
	cr, err := s.repo.LockByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "change request not found", "failed to load change request")
	}
	if cr.Status != models.ChangeRequestPending {
		return nil, appErrors.ErrAlreadyReviewed
	}
	return cr, nil
}

func (s *ChangeRequestService) resolve(ctx context.Context, cr *models.ChangeRequest, status models.ChangeRequestStatus, actor models.Actor, note string) error {
	if err := cr.Resolve(status, actor.UserID, note, s.now().UTC()); err != nil {
		if errors.Is(err, models.ErrAlreadyResolved) {
			return appErrors.ErrAlreadyReviewed
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve change request")
	}
	if err := s.repo.SaveResolution(ctx, cr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAlreadyReviewed
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save change request")
	}
	return nil
}

func (s *ChangeRequestService) recordFailure(err error) {
	switch {
	case errors.Is(err, appErrors.ErrPendingExists), errors.Is(err, appErrors.ErrAlreadyReviewed):
		s.metrics.RecordChangeRequest(OutcomeConflict)
	case errors.Is(err, appErrors.ErrValidation):
		s.metrics.RecordChangeRequest(OutcomeInvalid)
	}
}

func changeKeys(changes models.FieldChanges) []string {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
