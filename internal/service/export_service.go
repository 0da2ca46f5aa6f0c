package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	appErrors "github.com/noah-isme/warga-api/pkg/errors"
	"github.com/noah-isme/warga-api/pkg/export"
)

const (
	contentTypeCSV = "text/csv; charset=UTF-8"
	contentTypePDF = "application/pdf"
)

var (
	residentCSVHeaders = []string{
		"NIK", "Nama Lengkap", "Jenis Kelamin", "Tempat Lahir", "Tanggal Lahir", "Agama",
		"Pendidikan", "Pekerjaan", "Status Perkawinan", "Alamat", "RT", "RW", "Kelurahan",
		"Kecamatan", "Kota", "Provinsi", "Kode Pos", "No. Telepon",
	}
	indonesianMonths = [...]string{
		"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember",
	}
	unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

type residentExportSource interface {
	ListAll(ctx context.Context) ([]models.Resident, error)
	FindByID(ctx context.Context, id string) (*models.Resident, error)
	FindByUserID(ctx context.Context, userID string) (*models.Resident, error)
}

type csvRenderer interface {
	Render(t export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export documents.
type ExportConfig struct {
	PDFTitle string
	Location *time.Location
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the resident register as CSV and single residents as PDF profiles.
type ExportService struct {
	residents residentExportSource
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs the service.
func NewExportService(residents residentExportSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if cfg.PDFTitle == "" {
		cfg.PDFTitle = "DATA PRIBADI WARGA"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &ExportService{residents: residents, csv: csv, pdf: pdf, logger: logger, cfg: cfg, now: time.Now}
}

// ResidentsCSV exports every resident ordered by name.
func (s *ExportService) ResidentsCSV(ctx context.Context) (*ExportFile, error) {
	residents, err := s.residents.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load warga")
	}

	table := export.Table{Headers: residentCSVHeaders, Rows: make([][]string, 0, len(residents))}
	for _, r := range residents {
		table.Rows = append(table.Rows, []string{
			r.NIK, r.NamaLengkap, r.JenisKelamin, r.TempatLahir, r.TanggalLahir.Format(dto.DateLayout), r.Agama,
			r.Pendidikan, r.Pekerjaan, r.StatusPerkawinan, r.Alamat, r.RT, r.RW, r.Kelurahan,
			r.Kecamatan, r.Kota, r.Provinsi, r.KodePos, r.NoTelepon,
		})
	}
	body, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}

	now := s.now().In(s.cfg.Location)
	s.logger.Info("warga exported", zap.Int("rows", len(residents)))
	return &ExportFile{
		Filename:    "data_warga_" + now.Format("2006-01-02_150405") + ".csv",
		ContentType: contentTypeCSV,
		Body:        body,
	}, nil
}

// ResidentPDF renders one resident's profile. A WARGA may only render their own.
func (s *ExportService) ResidentPDF(ctx context.Context, actor models.Actor, id string) (*ExportFile, error) {
	resident, err := s.residents.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "warga not found", "failed to load warga")
	}
	if !actor.IsAdmin() && !ownedBy(resident, actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only download your own data")
	}
	return s.renderProfile(resident)
}

// MyPDF renders the profile of the resident linked to the actor.
func (s *ExportService) MyPDF(ctx context.Context, actor models.Actor) (*ExportFile, error) {
	resident, err := s.residents.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "no warga record is linked to this account", "failed to load warga")
	}
	return s.renderProfile(resident)
}

func (s *ExportService) renderProfile(r *models.Resident) (*ExportFile, error) {
	now := s.now().In(s.cfg.Location)
	doc := export.Document{
		Title:    s.cfg.PDFTitle,
		Subtitle: "Dicetak pada: " + formatIndonesianDate(now) + now.Format(" 15:04"),
		Sections: []export.Section{
			{Title: "Informasi Pribadi", Fields: []export.Field{
				{Label: "NIK", Value: r.NIK},
				{Label: "Nama Lengkap", Value: r.NamaLengkap},
				{Label: "Jenis Kelamin", Value: r.JenisKelamin},
				{Label: "Tempat, Tanggal Lahir", Value: r.TempatLahir + ", " + formatIndonesianDate(r.TanggalLahir)},
				{Label: "Agama", Value: r.Agama},
				{Label: "Status Perkawinan", Value: r.StatusPerkawinan},
			}},
			{Title: "Pendidikan & Pekerjaan", Fields: []export.Field{
				{Label: "Pendidikan", Value: r.Pendidikan},
				{Label: "Pekerjaan", Value: r.Pekerjaan},
			}},
			{Title: "Alamat", Fields: []export.Field{
				{Label: "Alamat", Value: r.Alamat},
				{Label: "RT / RW", Value: r.RT + " / " + r.RW},
				{Label: "Kelurahan", Value: r.Kelurahan},
				{Label: "Kecamatan", Value: r.Kecamatan},
				{Label: "Kota", Value: r.Kota},
				{Label: "Provinsi", Value: r.Provinsi},
				{Label: "Kode Pos", Value: r.KodePos},
			}},
			{Title: "Kontak", Fields: []export.Field{
				{Label: "No. Telepon", Value: r.NoTelepon},
			}},
		},
		Footer: "Dokumen ini dicetak secara otomatis dari Sistem Pencatatan Warga",
	}

	body, err := s.pdf.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("Data_Pribadi_%s_%s.pdf", safeFilename(r.NamaLengkap), now.Format(dto.DateLayout)),
		ContentType: contentTypePDF,
		Body:        body,
	}, nil
}

func formatIndonesianDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), indonesianMonths[t.Month()-1], t.Year())
}

// safeFilename keeps a name usable inside a Content-Disposition header.
func safeFilename(name string) string {
	cleaned := strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if cleaned == "" {
		return "warga"
	}
	return cleaned
}
