package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
)

type mockDashboardRepo struct {
	stats *models.DashboardStats
	calls int
}

func (m *mockDashboardRepo) Stats(ctx context.Context) (*models.DashboardStats, error) {
	m.calls++
	copy := *m.stats
	return &copy, nil
}

func TestDashboardServiceStats(t *testing.T) {
	repo := &mockDashboardRepo{stats: &models.DashboardStats{
		TotalMembers: 12,
		TutorCount:   5,
		StudentCount: 8,
		PendingCount: 3,
	}}
	svc := NewDashboardService(repo, nil, time.Minute, zap.NewNop())

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 12, stats.TotalMembers)
	assert.Equal(t, 5, stats.TutorCount)
	assert.Equal(t, 8, stats.StudentCount)
	assert.Equal(t, 3, stats.PendingCount)
	assert.False(t, stats.UpdatedAt.IsZero())
}

func TestDashboardServiceStatsRecomputesWithoutCache(t *testing.T) {
	repo := &mockDashboardRepo{stats: &models.DashboardStats{TotalMembers: 1}}
	svc := NewDashboardService(repo, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Stats(context.Background())
	require.NoError(t, err)
	_, _, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}
