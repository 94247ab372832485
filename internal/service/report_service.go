package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
	"github.com/elevatedtutors/tutors-api/pkg/export"
)

type studentOverviewProvider interface {
	LatestPerStudent(ctx context.Context, tutorID string) ([]models.StudentSubmissionSummary, error)
	ListByStudent(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.SubmissionDetail, error)
}

// ReportFormat selects the rendering of an export.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportFile is a rendered export ready for download.
type ReportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ReportService renders a tutor's student overview as CSV or PDF.
type ReportService struct {
	overview studentOverviewProvider
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService creates an instance of ReportService.
func NewReportService(overview studentOverviewProvider, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		overview: overview,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		now:      time.Now,
	}
}

// StudentOverview renders the latest-submission-per-student table for a
// tutor in the requested format.
func (s *ReportService) StudentOverview(ctx context.Context, tutorID string, format ReportFormat) (*ReportFile, error) {
	format = ReportFormat(strings.ToLower(string(format)))
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	summaries, err := s.overview.LatestPerStudent(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Latest Submission", "Subject", "Files", "Grade", "Status", "Uploaded"},
	}
	for _, summary := range summaries {
		row := map[string]string{
			"Student":           summary.StudentName,
			"Latest Submission": derefOr(summary.Title, "-"),
			"Subject":           derefOr(summary.SubjectName, "-"),
			"Files":             fmt.Sprintf("%d", summary.FileCount),
			"Grade":             formatGrade(summary.Grade),
			"Status":            derefOr(summary.Status, "-"),
			"Uploaded":          formatDate(summary.UploadDate),
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	return s.render(dataset, "student-overview", "Student Overview", format)
}

// SubmissionHistory renders a student's own submissions with grades in the
// requested format. Access rules follow the listing endpoint: the student
// themselves, their tutor, or an admin.
func (s *ReportService) SubmissionHistory(ctx context.Context, studentID string, actor *models.JWTClaims, format ReportFormat) (*ReportFile, error) {
	format = ReportFormat(strings.ToLower(string(format)))
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	submissions, err := s.overview.ListByStudent(ctx, studentID, actor)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Title", "Subject", "Files", "Grade", "Status", "Uploaded"},
	}
	for _, submission := range submissions {
		grade := "-"
		if submission.Status == models.SubmissionStatusGraded {
			grade = fmt.Sprintf("%.1f", submission.Grade)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Title":    submission.Title,
			"Subject":  submission.SubjectName,
			"Files":    fmt.Sprintf("%d", submission.FileCount),
			"Grade":    grade,
			"Status":   submission.Status,
			"Uploaded": submission.UploadDate.UTC().Format("2006-01-02"),
		})
	}

	return s.render(dataset, "submission-history", "Submission History", format)
}

func (s *ReportService) render(dataset export.Dataset, baseName, title string, format ReportFormat) (*ReportFile, error) {
	stamp := s.now().UTC().Format("2006-01-02")
	switch format {
	case ReportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("%s-%s.csv", baseName, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	default:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("%s-%s.pdf", baseName, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	}
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}

func formatGrade(grade *float64) string {
	if grade == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *grade)
}

func formatDate(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.UTC().Format("2006-01-02")
}
