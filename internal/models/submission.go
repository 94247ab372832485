package models

import "time"

// Submission statuses are free text by design; these are the values the
// grading workflow writes.
const (
	SubmissionStatusPending = "Pending"
	SubmissionStatusGraded  = "Graded"
)

// Submission is a graded artifact a student uploads for a subject.
type Submission struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Notes      string    `db:"notes" json:"notes"`
	UploadDate time.Time `db:"upload_date" json:"upload_date"`
	Grade      float64   `db:"grade" json:"grade"`
	Status     string    `db:"status" json:"status"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubmissionFile references a stored attachment for a submission.
type SubmissionFile struct {
	ID           string    `db:"id" json:"id"`
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	FilePath     string    `db:"file_path" json:"-"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SubmissionDetail joins subject name and file count onto a submission.
type SubmissionDetail struct {
	Submission
	SubjectName string `db:"subject_name" json:"subject_name"`
	FileCount   int    `db:"file_count" json:"file_count"`
}

// StudentSubmissionSummary is the tutor overview row: one line per student
// showing that student's most recent submission.
type StudentSubmissionSummary struct {
	StudentID    string     `db:"student_id" json:"student_id"`
	StudentName  string     `db:"student_name" json:"student_name"`
	SubmissionID *string    `db:"submission_id" json:"submission_id,omitempty"`
	Title        *string    `db:"title" json:"title,omitempty"`
	SubjectName  *string    `db:"subject_name" json:"subject_name,omitempty"`
	FileCount    int        `db:"file_count" json:"file_count"`
	Grade        *float64   `db:"grade" json:"grade,omitempty"`
	Status       *string    `db:"status" json:"status,omitempty"`
	UploadDate   *time.Time `db:"upload_date" json:"upload_date,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
}
