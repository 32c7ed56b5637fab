package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
	"github.com/studyflow/studyflow-api/pkg/export"
)

// ExportFormat names a supported export rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportPlanReader interface {
	FindByID(ctx context.Context, id string) (*models.Plan, error)
}

type exportSessionReader interface {
	ListByPlan(ctx context.Context, planID string) ([]models.Session, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries a rendered schedule export.
type ExportResult struct {
	Payload     []byte
	ContentType string
	Filename    string
}

// ExportService renders a plan's session calendar as CSV or PDF.
type ExportService struct {
	plans    exportPlanReader
	sessions exportSessionReader
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(plans exportPlanReader, sessions exportSessionReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{plans: plans, sessions: sessions, csv: csv, pdf: pdf, logger: logger}
}

// Generate builds the plan's schedule dataset and renders it in the
// requested format.
func (s *ExportService) Generate(ctx context.Context, planID string, format ExportFormat) (*ExportResult, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound.Code) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	sessions, err := s.sessions.ListByPlan(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}

	dataset := buildScheduleDataset(sessions)
	title := fmt.Sprintf("Study Schedule - %s", plan.Title)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("schedule exported",
		zap.String("planId", planID),
		zap.String("format", string(format)),
		zap.Int("sessions", len(sessions)))

	return &ExportResult{
		Payload:     payload,
		ContentType: contentType,
		Filename:    buildExportFilename(plan, format),
	}, nil
}

func buildScheduleDataset(sessions []models.Session) export.Dataset {
	headers := []string{"Date", "Start", "End", "Topic", "Difficulty", "Priority", "Status", "Minutes"}
	rows := make([]map[string]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, map[string]string{
			"Date":       sess.StartAt.UTC().Format("2006-01-02"),
			"Start":      sess.StartAt.UTC().Format("15:04"),
			"End":        sess.EndAt.UTC().Format("15:04"),
			"Topic":      sess.Title,
			"Difficulty": string(sess.Difficulty),
			"Priority":   fmt.Sprintf("%d", sess.Priority),
			"Status":     string(sess.Status),
			"Minutes":    fmt.Sprintf("%d", sess.DurationMinutes()),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func buildExportFilename(plan *models.Plan, format ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	name := strings.ToLower(strings.ReplaceAll(plan.Title, " ", "_"))
	if len(name) > 60 {
		name = name[:60]
	}
	if name == "" {
		name = "schedule"
	}
	return fmt.Sprintf("%s_%s.%s", name, timestamp, format)
}
