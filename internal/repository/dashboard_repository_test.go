package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	rows := sqlmock.NewRows([]string{"tutor_count", "student_count", "total_members", "pending_count"}).
		AddRow(4, 11, 14, 3)
	mock.ExpectQuery(`(?s)SELECT.*tutor_count.*pending_count`).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TutorCount)
	assert.Equal(t, 11, stats.StudentCount)
	// Distinct approved members, not the sum of role counters.
	assert.Equal(t, 14, stats.TotalMembers)
	assert.Equal(t, 3, stats.PendingCount)
	assert.False(t, stats.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
