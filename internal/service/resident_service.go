package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/database"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

const (
	residentPageSize     = 10
	nikConstraint        = "warga_nik_key"
	linkedUserConstraint = "warga_user_id_key"
)

type residentStore interface {
	List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, int, error)
	ListAll(ctx context.Context) ([]models.Resident, error)
	FindByID(ctx context.Context, id string) (*models.Resident, error)
	LockByID(ctx context.Context, id string) (*models.Resident, error)
	FindByUserID(ctx context.Context, userID string) (*models.Resident, error)
	LockByUserID(ctx context.Context, userID string) (*models.Resident, error)
	NIKExists(ctx context.Context, nik, excludeID string) (bool, error)
	UserLinked(ctx context.Context, userID, excludeID string) (bool, error)
	Create(ctx context.Context, resident *models.Resident) error
	Update(ctx context.Context, resident *models.Resident) error
	Delete(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// transactor runs fn inside one database transaction carried on the context.
type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResidentService manages warga records on behalf of administrators and exposes a
// resident's own record to its linked account.
type ResidentService struct {
	repo      residentStore
	users     userFinder
	audit     auditRecorder
	tx        transactor
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResidentService constructs the service.
func NewResidentService(repo residentStore, users userFinder, audit auditRecorder, tx transactor, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ResidentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResidentService{repo: repo, users: users, audit: audit, tx: tx, cache: cache, validator: validate, logger: logger}
}

// List returns one page of residents, newest first.
func (s *ResidentService) List(ctx context.Context, q dto.ResidentQuery) ([]models.Resident, *models.Pagination, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	filter := models.ResidentFilter{
		Search:   strings.TrimSpace(q.Search),
		RT:       strings.TrimSpace(q.RT),
		RW:       strings.TrimSpace(q.RW),
		Page:     page,
		PageSize: residentPageSize,
	}
	residents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list warga")
	}
	return residents, models.NewPagination(page, residentPageSize, total), nil
}

// Get returns a resident. A WARGA may only read the record linked to their account.
func (s *ResidentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Resident, error) {
	resident, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "warga not found", "failed to load warga")
	}
	if !actor.IsAdmin() && !ownedBy(resident, actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own data")
	}
	return resident, nil
}

// Mine returns the resident linked to the actor's account.
func (s *ResidentService) Mine(ctx context.Context, actor models.Actor) (*models.Resident, error) {
	resident, err := s.repo.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "no warga record is linked to this account", "failed to load warga")
	}
	return resident, nil
}

// Create registers a new resident.
func (s *ResidentService) Create(ctx context.Context, actor models.Actor, req dto.ResidentRequest) (*models.Resident, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	resident := &models.Resident{}
	req.ApplyTo(resident)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.checkUnique(ctx, resident, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, resident); err != nil {
			return writeError(err, "failed to create warga")
		}
		return s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionCreate,
			ModelType:   models.ModelWarga,
			ModelID:     resident.ID,
			New:         resident,
			Description: "Menambahkan data warga baru: " + resident.NamaLengkap,
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateDashboard(ctx)
	s.logger.Info("warga created", zap.String("warga_id", resident.ID), zap.String("actor_id", actor.UserID))
	return resident, nil
}

// Update replaces a resident's data.
func (s *ResidentService) Update(ctx context.Context, actor models.Actor, id string, req dto.ResidentRequest) (*models.Resident, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var updated *models.Resident
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resident, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return storeError(err, "warga not found", "failed to load warga")
		}
		before := *resident
		req.ApplyTo(resident)

		if err := s.checkUnique(ctx, resident, resident.ID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, resident); err != nil {
			return writeError(err, "failed to update warga")
		}
		updated = resident
		return s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionUpdate,
			ModelType:   models.ModelWarga,
			ModelID:     resident.ID,
			Old:         before,
			New:         resident,
			Description: "Memperbarui data warga: " + resident.NamaLengkap,
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateDashboard(ctx)
	return updated, nil
}

// Delete removes a resident, recording its last state in the activity log.
func (s *ResidentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resident, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return storeError(err, "warga not found", "failed to load warga")
		}
		if err := s.audit.Record(ctx, actor, models.AuditEntry{
			Action:      models.AuditActionDelete,
			ModelType:   models.ModelWarga,
			ModelID:     resident.ID,
			Old:         resident,
			Description: "Menghapus data warga: " + resident.NamaLengkap,
		}); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, resident.ID); err != nil {
			return storeError(err, "warga not found", "failed to delete warga")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateDashboard(ctx)
	s.logger.Info("warga deleted", zap.String("warga_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

// checkUnique enforces NIK uniqueness and the one-resident-per-account link.
func (s *ResidentService) checkUnique(ctx context.Context, resident *models.Resident, excludeID string) error {
	exists, err := s.repo.NIKExists(ctx, resident.NIK, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check nik")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateNIK, fmt.Sprintf("nik %s is already registered", resident.NIK))
	}
	if resident.UserID == nil {
		return nil
	}

	user, err := s.users.FindByID(ctx, *resident.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fieldError("user_id", "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if user.Role != models.RoleWarga {
		return fieldError("user_id", "must be a WARGA account")
	}
	linked, err := s.repo.UserLinked(ctx, user.ID, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check linked account")
	}
	if linked {
		return fieldError("user_id", "account is already linked to another warga")
	}
	return nil
}

func ownedBy(resident *models.Resident, userID string) bool {
	return resident.UserID != nil && userID != "" && *resident.UserID == userID
}

// storeError maps a repository read failure: missing rows become NOT_FOUND, typed errors pass through.
func storeError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

// writeError maps a repository write failure, translating unique violations that
// slipped past the pre-checks under concurrency.
func writeError(err error, internal string) error {
	switch {
	case database.IsUniqueViolation(err, nikConstraint):
		return appErrors.Clone(appErrors.ErrDuplicateNIK, "nik is already registered")
	case database.IsUniqueViolation(err, linkedUserConstraint):
		return fieldError("user_id", "account is already linked to another warga")
	}
	return storeError(err, "warga not found", internal)
}
