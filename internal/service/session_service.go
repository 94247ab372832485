package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
}

type sessionSubjectRepository interface {
	GetByID(ctx context.Context, id string) (*models.SubjectDetail, error)
}

// CreateSessionRequest schedules a session for a subject.
type CreateSessionRequest struct {
	SessionNumber int       `json:"session_number" validate:"required,min=1"`
	SessionDate   time.Time `json:"session_date" validate:"required"`
	SubjectID     string    `json:"subject_id" validate:"required"`
}

// UpdateSessionStatusRequest moves a session along its lifecycle.
type UpdateSessionStatusRequest struct {
	Status models.SessionStatus `json:"status" validate:"required,oneof=Completed Cancelled"`
}

// SessionService manages scheduled tutoring sessions. The lifecycle is one
// way: once a session completes or is cancelled it never transitions again.
type SessionService struct {
	repo      sessionRepository
	subjects  sessionSubjectRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService creates an instance of SessionService.
func NewSessionService(repo sessionRepository, subjects sessionSubjectRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{repo: repo, subjects: subjects, validator: validate, logger: logger, now: time.Now}
}

// Create schedules a session. The participants are taken from the subject so
// a session always matches its subject's pairing.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	subject, err := s.subjects.GetByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.TutorID == nil || subject.StudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject has no tutor and student assigned")
	}

	session := &models.Session{
		SessionNumber: req.SessionNumber,
		SessionDate:   req.SessionDate.UTC(),
		Status:        models.SessionScheduled,
		SubjectID:     req.SubjectID,
		StudentID:     *subject.StudentID,
		TutorID:       *subject.TutorID,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// List returns sessions matching the filter ordered by date.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, error) {
	sessions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Schedule returns the filtered sessions grouped by calendar day in date
// order.
func (s *SessionService) Schedule(ctx context.Context, filter models.SessionFilter) ([]models.SessionDay, error) {
	sessions, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var days []models.SessionDay
	for _, session := range sessions {
		day := session.SessionDate.UTC().Truncate(24 * time.Hour)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(day) {
			days = append(days, models.SessionDay{Date: day})
		}
		days[len(days)-1].Sessions = append(days[len(days)-1].Sessions, session)
	}
	return days, nil
}

// Current returns the earliest still-scheduled session for the filter, or nil
// when nothing is upcoming.
func (s *SessionService) Current(ctx context.Context, filter models.SessionFilter) (*models.SessionDetail, error) {
	scheduled := models.SessionScheduled
	filter.Status = &scheduled
	sessions, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// UpdateStatus transitions a session to Completed or Cancelled. Only the
// session's tutor or an admin may transition it, and terminal sessions are
// refused.
func (s *SessionService) UpdateStatus(ctx context.Context, id string, req UpdateSessionStatusRequest, actor *models.JWTClaims) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if actor != nil && !actor.HasRole(models.RoleAdmin) && session.TutorID != actor.AccountID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the session's tutor may update it")
	}

	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is already completed or cancelled")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}

	session.Status = req.Status
	session.UpdatedAt = s.now().UTC()
	return session, nil
}
