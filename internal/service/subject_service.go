package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type subjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	GetByID(ctx context.Context, id string) (*models.SubjectDetail, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, int, error)
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectAccountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	RolesFor(ctx context.Context, accountID string) ([]models.Role, error)
}

// CreateSubjectRequest is the payload for creating a subject.
type CreateSubjectRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	TutorID     *string `json:"tutor_id"`
	StudentID   *string `json:"student_id"`
}

// UpdateSubjectRequest is the payload for updating a subject.
type UpdateSubjectRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	TutorID     *string `json:"tutor_id"`
	StudentID   *string `json:"student_id"`
}

// SubjectService manages the tutor-student subject pairings.
type SubjectService struct {
	repo      subjectRepository
	accounts  subjectAccountRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates an instance of SubjectService.
func NewSubjectService(repo subjectRepository, accounts subjectAccountRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, accounts: accounts, validator: validate, logger: logger}
}

// List returns subjects matching the filter with pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return subjects, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a subject by ID.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject, verifying referenced participants hold the expected
// role.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if err := s.checkParticipant(ctx, req.TutorID, models.RoleTutor); err != nil {
		return nil, err
	}
	if err := s.checkParticipant(ctx, req.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Name:        req.Name,
		Description: req.Description,
		TutorID:     req.TutorID,
		StudentID:   req.StudentID,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	return s.Get(ctx, subject.ID)
}

// Update modifies subject attributes and participant assignments.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkParticipant(ctx, req.TutorID, models.RoleTutor); err != nil {
		return nil, err
	}
	if err := s.checkParticipant(ctx, req.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}

	subject := existing.Subject
	subject.Name = req.Name
	subject.Description = req.Description
	subject.TutorID = req.TutorID
	subject.StudentID = req.StudentID

	if err := s.repo.Update(ctx, &subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	return s.Get(ctx, id)
}

// Delete removes a subject together with its sessions and submissions.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

func (s *SubjectService) checkParticipant(ctx context.Context, accountID *string, role models.Role) error {
	if accountID == nil || *accountID == "" || s.accounts == nil {
		return nil
	}
	if _, err := s.accounts.FindByID(ctx, *accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "referenced account does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify participant")
	}
	roles, err := s.accounts.RolesFor(ctx, *accountID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify participant role")
	}
	for _, held := range roles {
		if held == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "referenced account does not hold the required role")
}
