package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type mockSubmissionRepo struct {
	submissions map[string]*models.Submission
	files       map[string]*models.SubmissionFile
	created     []*models.Submission
	feedback    map[string]string
	audits      []*models.AuditLog
	summaries   []models.StudentSubmissionSummary
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{
		submissions: make(map[string]*models.Submission),
		files:       make(map[string]*models.SubmissionFile),
		feedback:    make(map[string]string),
	}
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission, files []models.SubmissionFile) error {
	copy := *submission
	m.submissions[submission.ID] = &copy
	m.created = append(m.created, &copy)
	for i := range files {
		file := files[i]
		m.files[file.ID] = &file
	}
	return nil
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	if submission, ok := m.submissions[id]; ok {
		copy := *submission
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FilesFor(ctx context.Context, submissionID string) ([]models.SubmissionFile, error) {
	var out []models.SubmissionFile
	for _, file := range m.files {
		if file.SubmissionID == submissionID {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (m *mockSubmissionRepo) GetFileByID(ctx context.Context, id string) (*models.SubmissionFile, error) {
	if file, ok := m.files[id]; ok {
		copy := *file
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) ListByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error) {
	var out []models.SubmissionDetail
	for _, submission := range m.submissions {
		if submission.StudentID == studentID {
			out = append(out, models.SubmissionDetail{Submission: *submission})
		}
	}
	return out, nil
}

func (m *mockSubmissionRepo) LatestPerStudent(ctx context.Context, tutorID string) ([]models.StudentSubmissionSummary, error) {
	return m.summaries, nil
}

func (m *mockSubmissionRepo) UpdateFeedback(ctx context.Context, id, notes string, grade *float64, status string) error {
	submission, ok := m.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	submission.Notes = notes
	submission.Status = status
	if grade != nil {
		submission.Grade = *grade
	}
	m.feedback[id] = notes
	return nil
}

func (m *mockSubmissionRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func studentClaims(accountID string) *models.JWTClaims {
	return &models.JWTClaims{AccountID: accountID, Roles: []models.Role{models.RoleStudent}}
}

func newSubmissionService(repo *mockSubmissionRepo, subjects *mockSessionSubjects) *SubmissionService {
	return NewSubmissionService(repo, subjects, nil, nil, 1<<20, validator.New(), zap.NewNop())
}

func TestSubmissionServiceCreate(t *testing.T) {
	repo := newMockSubmissionRepo()
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", TutorID: strptr("t1"), StudentID: strptr("s1")}},
	}}
	svc := newSubmissionService(repo, subjects)

	submission, err := svc.Create(context.Background(), CreateSubmissionRequest{
		Title:     "Essay draft",
		SubjectID: "sub1",
	}, nil, studentClaims("s1"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, submission.Status)
	assert.Equal(t, "s1", submission.StudentID)
	assert.Len(t, repo.created, 1)
}

func TestSubmissionServiceCreateWrongStudent(t *testing.T) {
	repo := newMockSubmissionRepo()
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", StudentID: strptr("s1")}},
	}}
	svc := newSubmissionService(repo, subjects)

	_, err := svc.Create(context.Background(), CreateSubmissionRequest{
		Title:     "Essay draft",
		SubjectID: "sub1",
	}, nil, studentClaims("s2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceFeedbackGrades(t *testing.T) {
	repo := newMockSubmissionRepo()
	repo.submissions["sm1"] = &models.Submission{ID: "sm1", SubjectID: "sub1", StudentID: "s1", Status: models.SubmissionStatusPending}
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", TutorID: strptr("t1"), StudentID: strptr("s1")}},
	}}
	svc := newSubmissionService(repo, subjects)

	grade := 87.5
	submission, err := svc.Feedback(context.Background(), "sm1", FeedbackRequest{Notes: "Solid work", Grade: &grade}, tutorClaims("t1"), models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusGraded, submission.Status)
	assert.Equal(t, 87.5, submission.Grade)
	assert.NotEmpty(t, repo.audits)
}

func TestSubmissionServiceFeedbackWrongTutor(t *testing.T) {
	repo := newMockSubmissionRepo()
	repo.submissions["sm1"] = &models.Submission{ID: "sm1", SubjectID: "sub1", StudentID: "s1"}
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", TutorID: strptr("t1")}},
	}}
	svc := newSubmissionService(repo, subjects)

	_, err := svc.Feedback(context.Background(), "sm1", FeedbackRequest{Notes: "Nope"}, tutorClaims("t2"), models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.feedback)
}

func TestSubmissionServiceFeedbackBlankNotes(t *testing.T) {
	repo := newMockSubmissionRepo()
	repo.submissions["sm1"] = &models.Submission{ID: "sm1", SubjectID: "sub1"}
	svc := newSubmissionService(repo, &mockSessionSubjects{})

	_, err := svc.Feedback(context.Background(), "sm1", FeedbackRequest{Notes: "   "}, adminClaims(), models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceListByStudentForbidden(t *testing.T) {
	repo := newMockSubmissionRepo()
	svc := newSubmissionService(repo, &mockSessionSubjects{})

	_, err := svc.ListByStudent(context.Background(), "s1", studentClaims("s2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceLatestPerStudent(t *testing.T) {
	repo := newMockSubmissionRepo()
	now := time.Now()
	repo.summaries = []models.StudentSubmissionSummary{
		{StudentID: "s1", StudentName: "Ada Lovelace", SubmissionID: strptr("sm1"), UploadDate: &now},
		{StudentID: "s2", StudentName: "Grace Hopper"},
	}
	svc := newSubmissionService(repo, &mockSessionSubjects{})

	summaries, err := svc.LatestPerStudent(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.NotNil(t, summaries[0].SubmissionID)
	assert.Nil(t, summaries[1].SubmissionID)
}

func TestSubmissionServiceCreateRejectsOversizedUpload(t *testing.T) {
	repo := newMockSubmissionRepo()
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", StudentID: strptr("s1")}},
	}}
	svc := newSubmissionService(repo, subjects)

	_, err := svc.Create(context.Background(), CreateSubmissionRequest{
		Title:     "Essay draft",
		SubjectID: "sub1",
	}, []SubmissionUpload{{FileName: "big.pdf", Size: 2 << 20, Reader: strings.NewReader("x")}}, studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}
