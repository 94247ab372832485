package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elevatedtutors/tutors-api/internal/models"
)

// DashboardRepository computes admin dashboard aggregates.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats returns the dashboard counters in one round trip. Role counters count
// memberships; the member total counts distinct approved accounts holding a
// non-admin role, so accounts with degenerate multi-role data never break the
// query or double count the total.
func (r *DashboardRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM account_roles WHERE role = 'Tutor') AS tutor_count,
	(SELECT COUNT(*) FROM account_roles WHERE role = 'Student') AS student_count,
	(SELECT COUNT(DISTINCT ar.account_id) FROM account_roles ar
		JOIN accounts a ON a.id = ar.account_id
		WHERE ar.role IN ('Tutor', 'Student') AND a.is_approved) AS total_members,
	(SELECT COUNT(*) FROM accounts WHERE NOT is_approved) AS pending_count`

	var row struct {
		TutorCount   int `db:"tutor_count"`
		StudentCount int `db:"student_count"`
		TotalMembers int `db:"total_members"`
		PendingCount int `db:"pending_count"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	return &models.DashboardStats{
		TotalMembers: row.TotalMembers,
		TutorCount:   row.TutorCount,
		StudentCount: row.StudentCount,
		PendingCount: row.PendingCount,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}
