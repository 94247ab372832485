package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elevatedtutors/tutors-api/internal/models"
)

// SubmissionRepository persists submissions and their attachments.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a submission together with its file rows in one transaction.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission, files []models.SubmissionFile) (err error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.UploadDate.IsZero() {
		submission.UploadDate = now
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertSubmission = `INSERT INTO submissions (id, title, notes, upload_date, grade, status, subject_id, student_id, created_at, updated_at)
	VALUES (:id, :title, :notes, :upload_date, :grade, :status, :subject_id, :student_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSubmission, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}

	const insertFile = `INSERT INTO submission_files (id, submission_id, file_name, file_path, size_bytes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range files {
		if files[i].ID == "" {
			files[i].ID = uuid.NewString()
		}
		files[i].SubmissionID = submission.ID
		if files[i].CreatedAt.IsZero() {
			files[i].CreatedAt = now
		}
		if _, err = tx.ExecContext(ctx, insertFile, files[i].ID, files[i].SubmissionID, files[i].FileName, files[i].FilePath, files[i].SizeBytes, files[i].CreatedAt); err != nil {
			return fmt.Errorf("create submission file: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, title, notes, upload_date, grade, status, subject_id, student_id, created_at, updated_at FROM submissions WHERE id = $1 LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &submission, nil
}

// FilesFor returns the file rows attached to a submission.
func (r *SubmissionRepository) FilesFor(ctx context.Context, submissionID string) ([]models.SubmissionFile, error) {
	const query = `SELECT id, submission_id, file_name, file_path, size_bytes, created_at FROM submission_files WHERE submission_id = $1 ORDER BY created_at`
	var files []models.SubmissionFile
	if err := r.db.SelectContext(ctx, &files, query, submissionID); err != nil {
		return nil, fmt.Errorf("list submission files: %w", err)
	}
	return files, nil
}

// GetFileByID fetches a single attachment row.
func (r *SubmissionRepository) GetFileByID(ctx context.Context, id string) (*models.SubmissionFile, error) {
	const query = `SELECT id, submission_id, file_name, file_path, size_bytes, created_at FROM submission_files WHERE id = $1 LIMIT 1`
	var file models.SubmissionFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission file: %w", err)
	}
	return &file, nil
}

// ListByStudent returns a student's submissions, newest first, with subject
// name and attachment count for report views.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.title, s.notes, s.upload_date, s.grade, s.status, s.subject_id, s.student_id, s.created_at, s.updated_at,
	sub.name AS subject_name,
	(SELECT COUNT(*) FROM submission_files sf WHERE sf.submission_id = s.id) AS file_count
	FROM submissions s
	JOIN subjects sub ON sub.id = s.subject_id
	WHERE s.student_id = $1
	ORDER BY s.upload_date DESC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, studentID); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return submissions, nil
}

// LatestPerStudent returns one row per student taught by the tutor, carrying
// that student's most recent submission when one exists.
func (r *SubmissionRepository) LatestPerStudent(ctx context.Context, tutorID string) ([]models.StudentSubmissionSummary, error) {
	const query = `SELECT a.id AS student_id,
	(a.first_name || ' ' || a.surname) AS student_name,
	latest.id AS submission_id, latest.title, subj.name AS subject_name,
	COALESCE(fc.file_count, 0) AS file_count,
	latest.grade, latest.status, latest.upload_date, latest.notes
	FROM accounts a
	LEFT JOIN LATERAL (
		SELECT s.* FROM submissions s WHERE s.student_id = a.id ORDER BY s.upload_date DESC LIMIT 1
	) latest ON TRUE
	LEFT JOIN subjects subj ON subj.id = latest.subject_id
	LEFT JOIN LATERAL (
		SELECT COUNT(*) AS file_count FROM submission_files sf WHERE sf.submission_id = latest.id
	) fc ON TRUE
	WHERE EXISTS (SELECT 1 FROM subjects st WHERE st.student_id = a.id AND st.tutor_id = $1)
	ORDER BY student_name ASC`
	var summaries []models.StudentSubmissionSummary
	if err := r.db.SelectContext(ctx, &summaries, query, tutorID); err != nil {
		return nil, fmt.Errorf("list latest submissions per student: %w", err)
	}
	return summaries, nil
}

// AllFilePaths returns the storage paths of every attachment still referenced
// by a submission, for the orphan file sweep.
func (r *SubmissionRepository) AllFilePaths(ctx context.Context) ([]string, error) {
	const query = `SELECT file_path FROM submission_files`
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query); err != nil {
		return nil, fmt.Errorf("list submission file paths: %w", err)
	}
	return paths, nil
}

// UpdateFeedback stores tutor feedback and grade on a submission.
func (r *SubmissionRepository) UpdateFeedback(ctx context.Context, id, notes string, grade *float64, status string) error {
	const query = `UPDATE submissions SET notes = $2, grade = COALESCE($3, grade), status = $4, updated_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, notes, grade, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission feedback: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *SubmissionRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, account_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
	VALUES (:id, :account_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
