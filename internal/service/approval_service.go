package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elevatedtutors/tutors-api/internal/models"
	"github.com/elevatedtutors/tutors-api/internal/repository"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
)

type accountAdminRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	RolesFor(ctx context.Context, accountID string) ([]models.Role, error)
	Approve(ctx context.Context, accountID string, role models.Role) error
	ChangeRole(ctx context.Context, accountID string, newRole models.Role) error
	Delete(ctx context.Context, accountID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

// ApproveRequest assigns a role to a pending account and approves it.
type ApproveRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=Student Tutor Admin"`
}

// ChangeRoleRequest replaces the account's role. An empty role removes every
// membership while keeping the account approved.
type ChangeRoleRequest struct {
	Role models.Role `json:"role" validate:"omitempty,oneof=Student Tutor Admin"`
}

// DeleteAccountRequest carries the confirmation text a caller must supply
// before an account is removed.
type DeleteAccountRequest struct {
	Confirm string `json:"confirm" validate:"required"`
}

// ApprovalService handles the admin account lifecycle: approving pending
// registrations, reassigning roles and deleting accounts.
type ApprovalService struct {
	repo      accountAdminRepository
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService creates an instance of ApprovalService. The stats
// invalidator may be nil when no dashboard cache is wired.
func NewApprovalService(repo accountAdminRepository, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{repo: repo, stats: stats, validator: validate, logger: logger}
}

// List returns accounts matching the filter with pagination metadata.
func (s *ApprovalService) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return accounts, pagination, nil
}

// ListPending returns unapproved accounts.
func (s *ApprovalService) ListPending(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	pending := false
	filter.Approved = &pending
	return s.List(ctx, filter)
}

// Get returns a single account with its role memberships.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	roles, err := s.repo.RolesFor(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	account.Roles = roles
	return account, nil
}

// Approve marks an account approved while assigning the requested role. The
// operation is safe to repeat: approving an already approved account with a
// role it holds changes nothing.
func (s *ApprovalService) Approve(ctx context.Context, accountID string, req ApproveRequest, actorID string, meta models.RequestMeta) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}

	if err := s.repo.Approve(ctx, accountID, req.Role); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		case errors.Is(err, repository.ErrUnknownRole):
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve account")
		}
	}

	s.invalidateStats(ctx)

	newPayload, _ := json.Marshal(map[string]interface{}{"is_approved": true, "role": req.Role})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		AccountID:  &actorID,
		Action:     models.AuditActionApprove,
		Resource:   "accounts",
		ResourceID: &accountID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record approval audit log", zap.Error(err))
	}

	return s.Get(ctx, accountID)
}

// ChangeRole replaces all of the account's role memberships with the role in
// the request and re-approves the account.
func (s *ApprovalService) ChangeRole(ctx context.Context, accountID string, req ChangeRoleRequest, actorID string, meta models.RequestMeta) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role change payload")
	}

	oldRoles, err := s.repo.RolesFor(ctx, accountID)
	if err != nil {
		s.logger.Warn("failed to load roles before change", zap.Error(err))
	}

	if err := s.repo.ChangeRole(ctx, accountID, req.Role); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		case errors.Is(err, repository.ErrUnknownRole):
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change role")
		}
	}

	s.invalidateStats(ctx)

	oldPayload, _ := json.Marshal(map[string]interface{}{"roles": oldRoles})
	newPayload, _ := json.Marshal(map[string]interface{}{"role": req.Role})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		AccountID:  &actorID,
		Action:     models.AuditActionRoleChange,
		Resource:   "accounts",
		ResourceID: &accountID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record role change audit log", zap.Error(err))
	}

	return s.Get(ctx, accountID)
}

// Delete removes an account and everything that references it. The caller
// must confirm the operation by typing "delete" in any casing; the check runs
// before the account is even looked up.
func (s *ApprovalService) Delete(ctx context.Context, accountID string, req DeleteAccountRequest, actorID string, meta models.RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid delete payload")
	}
	if !strings.EqualFold(strings.TrimSpace(req.Confirm), "DELETE") {
		return appErrors.Clone(appErrors.ErrValidation, "confirmation text must be DELETE")
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := s.repo.Delete(ctx, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}

	s.invalidateStats(ctx)

	oldPayload, _ := json.Marshal(map[string]interface{}{"email": account.Email, "is_approved": account.IsApproved})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		AccountID:  &actorID,
		Action:     models.AuditActionDelete,
		Resource:   "accounts",
		ResourceID: &accountID,
		OldValues:  oldPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record delete audit log", zap.Error(err))
	}

	return nil
}

func (s *ApprovalService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}
