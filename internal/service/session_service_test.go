package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]*models.Session
	listed   []models.SessionDetail
	updated  map[string]models.SessionStatus
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		sessions: make(map[string]*models.Session),
		updated:  make(map[string]models.SessionStatus),
	}
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = "generated"
	}
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if session, ok := m.sessions[id]; ok {
		copy := *session
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, error) {
	if filter.Status == nil {
		return m.listed, nil
	}
	var out []models.SessionDetail
	for _, session := range m.listed {
		if session.Status == *filter.Status {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if session, ok := m.sessions[id]; ok {
		session.Status = status
		m.updated[id] = status
		return nil
	}
	return sql.ErrNoRows
}

type mockSessionSubjects struct {
	subjects map[string]*models.SubjectDetail
}

func (m *mockSessionSubjects) GetByID(ctx context.Context, id string) (*models.SubjectDetail, error) {
	if subject, ok := m.subjects[id]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func strptr(s string) *string { return &s }

func tutorClaims(accountID string) *models.JWTClaims {
	return &models.JWTClaims{AccountID: accountID, Roles: []models.Role{models.RoleTutor}}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{AccountID: "admin", Roles: []models.Role{models.RoleAdmin}}
}

func TestSessionServiceCreate(t *testing.T) {
	repo := newMockSessionRepo()
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", TutorID: strptr("t1"), StudentID: strptr("s1")}},
	}}
	svc := NewSessionService(repo, subjects, validator.New(), zap.NewNop())

	session, err := svc.Create(context.Background(), CreateSessionRequest{
		SessionNumber: 1,
		SessionDate:   time.Now().Add(24 * time.Hour),
		SubjectID:     "sub1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, session.Status)
	assert.Equal(t, "t1", session.TutorID)
	assert.Equal(t, "s1", session.StudentID)
}

func TestSessionServiceCreateUnpairedSubject(t *testing.T) {
	repo := newMockSessionRepo()
	subjects := &mockSessionSubjects{subjects: map[string]*models.SubjectDetail{
		"sub1": {Subject: models.Subject{ID: "sub1", TutorID: strptr("t1")}},
	}}
	svc := NewSessionService(repo, subjects, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateSessionRequest{
		SessionNumber: 1,
		SessionDate:   time.Now(),
		SubjectID:     "sub1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceScheduleGroupsByDay(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	repo := newMockSessionRepo()
	repo.listed = []models.SessionDetail{
		{Session: models.Session{ID: "1", SessionDate: day1}},
		{Session: models.Session{ID: "2", SessionDate: day1.Add(2 * time.Hour)}},
		{Session: models.Session{ID: "3", SessionDate: day2}},
	}
	svc := NewSessionService(repo, nil, validator.New(), zap.NewNop())

	days, err := svc.Schedule(context.Background(), models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Len(t, days[0].Sessions, 2)
	assert.Len(t, days[1].Sessions, 1)
	assert.True(t, days[0].Date.Before(days[1].Date))
}

func TestSessionServiceCurrent(t *testing.T) {
	repo := newMockSessionRepo()
	repo.listed = []models.SessionDetail{
		{Session: models.Session{ID: "1", Status: models.SessionScheduled}},
		{Session: models.Session{ID: "2", Status: models.SessionScheduled}},
	}
	svc := NewSessionService(repo, nil, validator.New(), zap.NewNop())

	current, err := svc.Current(context.Background(), models.SessionFilter{})
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "1", current.ID)
}

func TestSessionServiceCurrentNoneScheduled(t *testing.T) {
	repo := newMockSessionRepo()
	repo.listed = []models.SessionDetail{
		{Session: models.Session{ID: "1", Status: models.SessionCompleted}},
	}
	svc := NewSessionService(repo, nil, validator.New(), zap.NewNop())

	current, err := svc.Current(context.Background(), models.SessionFilter{})
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSessionServiceUpdateStatus(t *testing.T) {
	repo := newMockSessionRepo()
	repo.sessions["1"] = &models.Session{ID: "1", TutorID: "t1", Status: models.SessionScheduled}
	svc := NewSessionService(repo, nil, validator.New(), zap.NewNop())

	session, err := svc.UpdateStatus(context.Background(), "1", UpdateSessionStatusRequest{Status: models.SessionCompleted}, tutorClaims("t1"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
}

func TestSessionServiceUpdateStatusTerminal(t *testing.T) {
	repo := newMockSessionRepo()
	repo.sessions["1"] = &models.Session{ID: "1", TutorID: "t1", Status: models.SessionCancelled}
	svc := NewSessionService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "1", UpdateSessionStatusRequest{Status: models.SessionCompleted}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceUpdateStatusWrongTutor(t *testing.T) {
	repo := newMockSessionRepo()
	repo.sessions["1"] = &models.Session{ID: "1", TutorID: "t1", Status: models.SessionScheduled}
	svc := NewSessionService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "1", UpdateSessionStatusRequest{Status: models.SessionCancelled}, tutorClaims("t2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}
