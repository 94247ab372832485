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

func TestSessionCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &models.Session{
		SessionNumber: 1,
		SessionDate:   time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC),
		SubjectID:     "sub1",
		StudentID:     "s1",
		TutorID:       "t1",
	}
	require.NoError(t, repo.Create(context.Background(), session))

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionScheduled, session.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "session_number", "session_date", "status", "subject_id", "student_id", "tutor_id",
		"created_at", "updated_at", "subject_name", "student_name", "tutor_name",
	}).
		AddRow("se1", 1, now, "Scheduled", "sub1", "s1", "t1", now, now, "Maths", "Ada Lovelace", "Grace Hopper")

	mock.ExpectQuery(`(?s)SELECT se\.id.*WHERE se\.tutor_id = \$1 AND se\.status = \$2 ORDER BY se\.session_date ASC`).
		WithArgs("t1", "Scheduled").
		WillReturnRows(rows)

	status := models.SessionScheduled
	sessions, err := repo.List(context.Background(), models.SessionFilter{TutorID: "t1", Status: &status})
	require.NoError(t, err)

	require.Len(t, sessions, 1)
	assert.Equal(t, "Maths", sessions[0].SubjectName)
	assert.Equal(t, models.SessionScheduled, sessions[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("se1", models.SessionCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "se1", models.SessionCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionUpdateStatusUnknownSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("missing", models.SessionCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.SessionCancelled)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
