package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type mockOverviewProvider struct {
	summaries   []models.StudentSubmissionSummary
	submissions []models.SubmissionDetail
}

func (m *mockOverviewProvider) LatestPerStudent(ctx context.Context, tutorID string) ([]models.StudentSubmissionSummary, error) {
	return m.summaries, nil
}

func (m *mockOverviewProvider) ListByStudent(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.SubmissionDetail, error) {
	return m.submissions, nil
}

func TestReportServiceStudentOverviewCSV(t *testing.T) {
	grade := 91.0
	uploaded := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	provider := &mockOverviewProvider{summaries: []models.StudentSubmissionSummary{
		{
			StudentID:   "s1",
			StudentName: "Ada Lovelace",
			Title:       strptr("Essay draft"),
			SubjectName: strptr("Maths"),
			FileCount:   2,
			Grade:       &grade,
			Status:      strptr(models.SubmissionStatusGraded),
			UploadDate:  &uploaded,
		},
		{StudentID: "s2", StudentName: "Grace Hopper"},
	}}
	svc := NewReportService(provider, zap.NewNop())

	report, err := svc.StudentOverview(context.Background(), "t1", ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", report.ContentType)
	assert.True(t, strings.HasSuffix(report.FileName, ".csv"))

	body := string(report.Data)
	assert.Contains(t, body, "Ada Lovelace")
	assert.Contains(t, body, "91.0")
	assert.Contains(t, body, "2026-02-10")
	assert.Contains(t, body, "Grace Hopper")
}

func TestReportServiceStudentOverviewPDF(t *testing.T) {
	provider := &mockOverviewProvider{summaries: []models.StudentSubmissionSummary{
		{StudentID: "s1", StudentName: "Ada Lovelace"},
	}}
	svc := NewReportService(provider, zap.NewNop())

	report, err := svc.StudentOverview(context.Background(), "t1", ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.NotEmpty(t, report.Data)
}

func TestReportServiceSubmissionHistoryCSV(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	provider := &mockOverviewProvider{submissions: []models.SubmissionDetail{
		{
			Submission: models.Submission{
				Title:      "Essay draft",
				Grade:      84.5,
				Status:     models.SubmissionStatusGraded,
				UploadDate: uploaded,
			},
			SubjectName: "Maths",
			FileCount:   1,
		},
		{
			Submission: models.Submission{
				Title:      "Homework 3",
				Status:     models.SubmissionStatusPending,
				UploadDate: uploaded,
			},
			SubjectName: "Maths",
		},
	}}
	svc := NewReportService(provider, zap.NewNop())

	report, err := svc.SubmissionHistory(context.Background(), "s1", adminClaims(), ReportFormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(report.FileName, "submission-history-"))

	body := string(report.Data)
	assert.Contains(t, body, "Essay draft")
	assert.Contains(t, body, "84.5")
	// Ungraded rows show no numeric grade.
	assert.Contains(t, body, "Homework 3,Maths,0,-,Pending")
}

func TestReportServiceUnknownFormat(t *testing.T) {
	svc := NewReportService(&mockOverviewProvider{}, zap.NewNop())

	_, err := svc.StudentOverview(context.Background(), "t1", ReportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
