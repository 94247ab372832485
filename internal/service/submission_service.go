package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission, files []models.SubmissionFile) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	FilesFor(ctx context.Context, submissionID string) ([]models.SubmissionFile, error)
	GetFileByID(ctx context.Context, id string) (*models.SubmissionFile, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error)
	LatestPerStudent(ctx context.Context, tutorID string) ([]models.StudentSubmissionSummary, error)
	UpdateFeedback(ctx context.Context, id, notes string, grade *float64, status string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type submissionSubjectRepository interface {
	GetByID(ctx context.Context, id string) (*models.SubjectDetail, error)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

type urlSigner interface {
	Generate(fileID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (fileID, relPath string, expiresAt time.Time, err error)
}

// SubmissionUpload is one incoming attachment.
type SubmissionUpload struct {
	FileName string
	Size     int64
	Reader   io.Reader
}

// CreateSubmissionRequest is the payload for a student uploading work.
type CreateSubmissionRequest struct {
	Title     string `json:"title" validate:"required"`
	Notes     string `json:"notes"`
	SubjectID string `json:"subject_id" validate:"required"`
}

// FeedbackRequest carries a tutor's notes and optional grade. Supplying notes
// marks the submission graded.
type FeedbackRequest struct {
	Notes string   `json:"notes" validate:"required"`
	Grade *float64 `json:"grade" validate:"omitempty,min=0,max=100"`
}

// SignedFileURL is the download grant handed to clients.
type SignedFileURL struct {
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmissionService manages student work uploads, tutor feedback and signed
// download links.
type SubmissionService struct {
	repo        submissionRepository
	subjects    submissionSubjectRepository
	store       fileStore
	signer      urlSigner
	validator   *validator.Validate
	logger      *zap.Logger
	maxFileSize int64
}

// NewSubmissionService creates an instance of SubmissionService.
func NewSubmissionService(repo submissionRepository, subjects submissionSubjectRepository, store fileStore, signer urlSigner, maxFileSize int64, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxFileSize <= 0 {
		maxFileSize = 25 << 20
	}
	return &SubmissionService{
		repo:        repo,
		subjects:    subjects,
		store:       store,
		signer:      signer,
		validator:   validate,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// Create stores a submission and its attachments. The caller must be the
// student assigned to the subject.
func (s *SubmissionService) Create(ctx context.Context, req CreateSubmissionRequest, uploads []SubmissionUpload, actor *models.JWTClaims) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	subject, err := s.subjects.GetByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.StudentID == nil || *subject.StudentID != actor.AccountID {
		if !actor.HasRole(models.RoleAdmin) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the subject's student may submit work")
		}
	}

	submission := &models.Submission{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Notes:      req.Notes,
		UploadDate: time.Now().UTC(),
		Status:     models.SubmissionStatusPending,
		SubjectID:  req.SubjectID,
		StudentID:  actor.AccountID,
	}
	if subject.StudentID != nil && actor.HasRole(models.RoleAdmin) {
		submission.StudentID = *subject.StudentID
	}

	files, err := s.storeUploads(submission.ID, uploads)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, submission, files); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	return submission, nil
}

// Get returns a submission with its files, enforcing participant access.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, []models.SubmissionFile, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if err := s.authorizeSubmissionAccess(ctx, submission, actor); err != nil {
		return nil, nil, err
	}

	files, err := s.repo.FilesFor(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission files")
	}
	return submission, files, nil
}

// ListByStudent returns a student's submissions newest first.
func (s *SubmissionService) ListByStudent(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.SubmissionDetail, error) {
	if actor != nil && !actor.HasRole(models.RoleAdmin) && !actor.HasRole(models.RoleTutor) && actor.AccountID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another student's submissions")
	}
	submissions, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// LatestPerStudent returns the tutor overview: one row per assigned student
// with that student's most recent submission, if any.
func (s *SubmissionService) LatestPerStudent(ctx context.Context, tutorID string) ([]models.StudentSubmissionSummary, error) {
	summaries, err := s.repo.LatestPerStudent(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student overview")
	}
	return summaries, nil
}

// Feedback records tutor notes and an optional grade, marking the submission
// graded. Only the tutor assigned to the submission's subject or an admin may
// grade.
func (s *SubmissionService) Feedback(ctx context.Context, id string, req FeedbackRequest, actor *models.JWTClaims, meta models.RequestMeta) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	if strings.TrimSpace(req.Notes) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "feedback notes are required")
	}

	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if err := s.authorizeTutor(ctx, submission, actor); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateFeedback(ctx, id, req.Notes, req.Grade, models.SubmissionStatusGraded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record feedback")
	}

	submission.Notes = req.Notes
	submission.Status = models.SubmissionStatusGraded
	if req.Grade != nil {
		submission.Grade = *req.Grade
	}

	if actor != nil {
		newPayload, _ := json.Marshal(map[string]interface{}{"grade": req.Grade, "status": submission.Status})
		if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
			AccountID:  &actor.AccountID,
			Action:     models.AuditActionGrade,
			Resource:   "submissions",
			ResourceID: &id,
			NewValues:  newPayload,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record grading audit log", zap.Error(err))
		}
	}

	return submission, nil
}

// FileURL issues a time-limited signed download token for an attachment.
func (s *SubmissionService) FileURL(ctx context.Context, fileID string, actor *models.JWTClaims) (*SignedFileURL, error) {
	file, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	submission, err := s.repo.GetByID(ctx, file.SubmissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if err := s.authorizeSubmissionAccess(ctx, submission, actor); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(file.ID, file.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	return &SignedFileURL{
		FileID:    file.ID,
		FileName:  file.FileName,
		URL:       fmt.Sprintf("/api/v1/files/download?token=%s", token),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenSigned validates a signed token and opens the underlying file.
func (s *SubmissionService) OpenSigned(ctx context.Context, token string) (*os.File, *models.SubmissionFile, error) {
	fileID, _, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}

	file, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	f, err := s.store.Open(file.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return f, file, nil
}

func (s *SubmissionService) storeUploads(submissionID string, uploads []SubmissionUpload) ([]models.SubmissionFile, error) {
	files := make([]models.SubmissionFile, 0, len(uploads))
	for _, upload := range uploads {
		if upload.Size > s.maxFileSize {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
		}
		name := filepath.Base(upload.FileName)
		if name == "" || name == "." {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file name is required")
		}
		relPath := filepath.Join("submissions", submissionID, name)
		stored, err := s.store.SaveStream(relPath, upload.Reader)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
		}
		files = append(files, models.SubmissionFile{
			ID:           uuid.NewString(),
			SubmissionID: submissionID,
			FileName:     name,
			FilePath:     stored,
			SizeBytes:    upload.Size,
		})
	}
	return files, nil
}

func (s *SubmissionService) authorizeSubmissionAccess(ctx context.Context, submission *models.Submission, actor *models.JWTClaims) error {
	if actor == nil {
		return nil
	}
	if actor.HasRole(models.RoleAdmin) || actor.AccountID == submission.StudentID {
		return nil
	}
	if actor.HasRole(models.RoleTutor) {
		subject, err := s.subjects.GetByID(ctx, submission.SubjectID)
		if err == nil && subject.TutorID != nil && *subject.TutorID == actor.AccountID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "no access to this submission")
}

func (s *SubmissionService) authorizeTutor(ctx context.Context, submission *models.Submission, actor *models.JWTClaims) error {
	if actor == nil || actor.HasRole(models.RoleAdmin) {
		return nil
	}
	if !actor.HasRole(models.RoleTutor) {
		return appErrors.Clone(appErrors.ErrForbidden, "only tutors may grade submissions")
	}
	subject, err := s.subjects.GetByID(ctx, submission.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "submission's subject no longer exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify grading access")
	}
	if subject.TutorID == nil || *subject.TutorID != actor.AccountID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the subject's tutor may grade")
	}
	return nil
}
