package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevatedtutors/tutors-api/internal/models"
)

func TestSubmissionCreateWithFiles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO submissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_files (id, submission_id, file_name, file_path, size_bytes, created_at) VALUES ($1, $2, $3, $4, $5, $6)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "essay.pdf", "submissions/x/essay.pdf", int64(2048), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	submission := &models.Submission{Title: "Essay", SubjectID: "sub1", StudentID: "s1"}
	files := []models.SubmissionFile{
		{FileName: "essay.pdf", FilePath: "submissions/x/essay.pdf", SizeBytes: 2048},
	}
	require.NoError(t, repo.Create(context.Background(), submission, files))

	assert.NotEmpty(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusPending, submission.Status)
	assert.Equal(t, submission.ID, files[0].SubmissionID)
	assert.NotEmpty(t, files[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionCreateRollsBackOnFileFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO submissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO submission_files`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	submission := &models.Submission{Title: "Essay", SubjectID: "sub1", StudentID: "s1"}
	files := []models.SubmissionFile{{FileName: "essay.pdf", FilePath: "p", SizeBytes: 1}}

	err := repo.Create(context.Background(), submission, files)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionListByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "title", "notes", "upload_date", "grade", "status", "subject_id", "student_id",
		"created_at", "updated_at", "subject_name", "file_count",
	}).
		AddRow("m2", "Essay 2", "", now, 0.0, "Pending", "sub1", "s1", now, now, "Maths", 2).
		AddRow("m1", "Essay 1", "Good work", now.Add(-time.Hour), 88.0, "Graded", "sub1", "s1", now, now, "Maths", 1)

	mock.ExpectQuery(`(?s)SELECT s\.id, s\.title.*WHERE s\.student_id = \$1.*ORDER BY s\.upload_date DESC`).
		WithArgs("s1").
		WillReturnRows(rows)

	submissions, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)

	require.Len(t, submissions, 2)
	assert.Equal(t, "Essay 2", submissions[0].Title)
	assert.Equal(t, 2, submissions[0].FileCount)
	assert.Equal(t, "Graded", submissions[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionLatestPerStudentIncludesQuietStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	subID := "m1"
	title := "Essay"
	subjectName := "Maths"
	grade := 91.0
	status := "Graded"
	rows := sqlmock.NewRows([]string{
		"student_id", "student_name", "submission_id", "title", "subject_name",
		"file_count", "grade", "status", "upload_date", "notes",
	}).
		AddRow("s1", "Ada Lovelace", &subID, &title, &subjectName, 2, &grade, &status, &now, nil).
		AddRow("s2", "Mary Somerville", nil, nil, nil, 0, nil, nil, nil, nil)

	mock.ExpectQuery(`(?s)SELECT a\.id AS student_id.*WHERE EXISTS.*st\.tutor_id = \$1`).
		WithArgs("t1").
		WillReturnRows(rows)

	summaries, err := repo.LatestPerStudent(context.Background(), "t1")
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	require.NotNil(t, summaries[0].SubmissionID)
	assert.Equal(t, 91.0, *summaries[0].Grade)
	assert.Nil(t, summaries[1].SubmissionID)
	assert.Equal(t, 0, summaries[1].FileCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionUpdateFeedbackUnknownSubmission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	grade := 75.0
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET notes = $2, grade = COALESCE($3, grade), status = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("missing", "notes", &grade, models.SubmissionStatusGraded, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFeedback(context.Background(), "missing", "notes", &grade, models.SubmissionStatusGraded)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
