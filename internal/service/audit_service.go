package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/database"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

const auditPageSize = 20

type auditStore interface {
	Insert(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
	DistinctActions(ctx context.Context) ([]string, error)
	DistinctModelTypes(ctx context.Context) ([]string, error)
}

// auditRecorder is what mutating services depend on to append activity log entries.
type auditRecorder interface {
	Record(ctx context.Context, actor models.Actor, entry models.AuditEntry) error
}

// AuditService appends to and queries the activity log.
type AuditService struct {
	repo    auditStore
	metrics *MetricsService
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// AuditServiceOption configures the service.
type AuditServiceOption func(*AuditService)

// WithAuditLocation sets the zone date filters are interpreted in.
func WithAuditLocation(loc *time.Location) AuditServiceOption {
	return func(s *AuditService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, metrics *MetricsService, logger *zap.Logger, opts ...AuditServiceOption) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, metrics: metrics, logger: logger, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Record appends one entry. Callers invoke it inside their mutation's transaction so a
// failed write aborts the mutation.
func (s *AuditService) Record(ctx context.Context, actor models.Actor, entry models.AuditEntry) error {
	if entry.Action == "" || entry.ModelType == "" {
		return fmt.Errorf("audit entry requires action and model type")
	}

	oldValues, err := snapshot(entry.Old)
	if err != nil {
		return fmt.Errorf("encode audit old values: %w", err)
	}
	newValues, err := snapshot(entry.New)
	if err != nil {
		return fmt.Errorf("encode audit new values: %w", err)
	}

	description := strings.TrimSpace(entry.Description)
	if description == "" {
		description = DefaultDescription(entry.Action, entry.ModelType)
	}

	log := &models.AuditLog{
		UserID:      optional(actor.UserID),
		Action:      entry.Action,
		ModelType:   entry.ModelType,
		ModelID:     optional(entry.ModelID),
		OldValues:   oldValues,
		NewValues:   newValues,
		Description: description,
		IPAddress:   actor.Meta.IP,
		UserAgent:   actor.Meta.UserAgent,
		RequestID:   actor.Meta.RequestID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, log); err != nil {
		s.logger.Error("write activity log failed",
			zap.String("action", entry.Action),
			zap.String("model_type", entry.ModelType),
			zap.String("model_id", entry.ModelID),
			zap.Error(err))
		return err
	}
	database.AfterCommit(ctx, func() { s.metrics.RecordAuditEntry(entry.Action, entry.ModelType) })
	return nil
}

// List returns one page of entries newest first, plus the distinct actions and model types for filter pickers.
func (s *AuditService) List(ctx context.Context, q dto.AuditQuery) (*dto.AuditList, error) {
	filter := models.AuditFilter{
		UserID:    strings.TrimSpace(q.UserID),
		Action:    strings.TrimSpace(q.Action),
		ModelType: strings.TrimSpace(q.ModelType),
		Search:    strings.TrimSpace(q.Search),
		Page:      q.Page,
		PageSize:  auditPageSize,
	}
	var err error
	if filter.DateFrom, err = parseDate("date_from", q.DateFrom, s.loc); err != nil {
		return nil, err
	}
	if filter.DateTo, err = parseDate("date_to", q.DateTo, s.loc); err != nil {
		return nil, err
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, fieldError("date_to", "must not be before date_from")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	actions, err := s.repo.DistinctActions(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity log actions")
	}
	modelTypes, err := s.repo.DistinctModelTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity log model types")
	}

	return &dto.AuditList{
		Items:      items,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, total),
		Actions:    actions,
		ModelTypes: modelTypes,
	}, nil
}

// DefaultDescription renders the fallback description for an action on a model type.
func DefaultDescription(action, modelType string) string {
	switch action {
	case models.AuditActionCreate:
		return fmt.Sprintf("Membuat data %s baru", modelType)
	case models.AuditActionUpdate:
		return fmt.Sprintf("Memperbarui data %s", modelType)
	case models.AuditActionDelete:
		return fmt.Sprintf("Menghapus data %s", modelType)
	case models.AuditActionApprove:
		return fmt.Sprintf("Menyetujui %s", modelType)
	case models.AuditActionReject:
		return fmt.Sprintf("Menolak %s", modelType)
	}
	return fmt.Sprintf("Melakukan aksi %s pada %s", action, modelType)
}

func snapshot(v interface{}) (types.NullJSONText, error) {
	if v == nil {
		return types.NullJSONText{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return types.NullJSONText{}, err
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseDate(field, raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dto.DateLayout, raw, loc)
	if err != nil {
		return nil, fieldError(field, "must be a date formatted YYYY-MM-DD")
	}
	return &t, nil
}
