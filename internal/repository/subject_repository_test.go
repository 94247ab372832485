package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevatedtutors/tutors-api/internal/models"
)

func subjectDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "tutor_id", "student_id",
		"created_at", "updated_at", "tutor_name", "student_name",
	})
}

func TestSubjectCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(`INSERT INTO subjects`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	subject := &models.Subject{Name: "Maths"}
	require.NoError(t, repo.Create(context.Background(), subject))

	assert.NotEmpty(t, subject.ID)
	assert.False(t, subject.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	tutorID := "t1"
	tutorName := "Grace Hopper"
	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT s\.id, s\.name.*WHERE s\.id = \$1`).
		WithArgs("sub1").
		WillReturnRows(subjectDetailRows().
			AddRow("sub1", "Physics", "Mechanics", &tutorID, nil, now, now, &tutorName, nil))

	subject, err := repo.GetByID(context.Background(), "sub1")
	require.NoError(t, err)

	assert.Equal(t, "Physics", subject.Name)
	require.NotNil(t, subject.TutorID)
	assert.Equal(t, "t1", *subject.TutorID)
	assert.Nil(t, subject.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectListFiltersByTutor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	tutorID := "t1"
	studentID := "s1"
	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT s\.id, s\.name.*WHERE s\.tutor_id = \$1 ORDER BY s\.name ASC`).
		WithArgs("t1").
		WillReturnRows(subjectDetailRows().
			AddRow("sub1", "Maths", "", &tutorID, &studentID, now, now, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects s WHERE s.tutor_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	subjects, total, err := repo.List(context.Background(), models.SubjectFilter{TutorID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Maths", subjects[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectDeleteCascades(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectBegin()
	for _, query := range []string{
		"DELETE FROM sessions WHERE subject_id = $1",
		"DELETE FROM submission_files WHERE submission_id IN (SELECT id FROM submissions WHERE subject_id = $1)",
		"DELETE FROM submissions WHERE subject_id = $1",
		"DELETE FROM subjects WHERE id = $1",
	} {
		mock.ExpectExec(regexp.QuoteMeta(query)).
			WithArgs("sub1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "sub1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectDeleteRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE subject_id = $1")).
		WithArgs("sub1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submission_files WHERE submission_id IN (SELECT id FROM submissions WHERE subject_id = $1)")).
		WithArgs("sub1").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "sub1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
