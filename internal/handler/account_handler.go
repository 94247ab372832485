package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elevatedtutors/tutors-api/internal/models"
	"github.com/elevatedtutors/tutors-api/internal/service"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
	"github.com/elevatedtutors/tutors-api/pkg/response"
)

type accountAdminService interface {
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error)
	ListPending(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	Approve(ctx context.Context, accountID string, req service.ApproveRequest, actorID string, meta models.RequestMeta) (*models.Account, error)
	ChangeRole(ctx context.Context, accountID string, req service.ChangeRoleRequest, actorID string, meta models.RequestMeta) (*models.Account, error)
	Delete(ctx context.Context, accountID string, req service.DeleteAccountRequest, actorID string, meta models.RequestMeta) error
}

// AccountHandler exposes the admin account management endpoints.
type AccountHandler struct {
	service accountAdminService
}

// NewAccountHandler creates a new handler.
func NewAccountHandler(svc accountAdminService) *AccountHandler {
	return &AccountHandler{service: svc}
}

// List godoc
// @Summary List accounts
// @Description List accounts with optional approval, role and search filters
// @Tags Accounts
// @Produce json
// @Param approved query bool false "Filter by approval state"
// @Param role query string false "Filter by role"
// @Param search query string false "Search email or name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	filter := accountFilterFromQuery(c)

	accounts, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, accounts, pagination)
}

// ListPending godoc
// @Summary List pending accounts
// @Description List accounts awaiting approval
// @Tags Accounts
// @Produce json
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/accounts/pending [get]
func (h *AccountHandler) ListPending(c *gin.Context) {
	filter := accountFilterFromQuery(c)

	accounts, pagination, err := h.service.ListPending(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, accounts, pagination)
}

// Get godoc
// @Summary Get account
// @Description Fetch a single account with its roles
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, account, nil)
}

// Approve godoc
// @Summary Approve an account
// @Description Approve a pending account and assign a role atomically
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body service.ApproveRequest true "Role to assign"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/accounts/{id}/approve [post]
func (h *AccountHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	account, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claims.AccountID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, account, nil)
}

// ChangeRole godoc
// @Summary Change an account's role
// @Description Replace the account's role memberships; an empty role removes all
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body service.ChangeRoleRequest true "New role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/accounts/{id}/role [put]
func (h *AccountHandler) ChangeRole(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid role payload"))
		return
	}

	account, err := h.service.ChangeRole(c.Request.Context(), c.Param("id"), req, claims.AccountID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, account, nil)
}

// Delete godoc
// @Summary Delete an account
// @Description Delete an account and everything referencing it; requires typed confirmation
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body service.DeleteAccountRequest true "Confirmation"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "confirmation payload required"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), req, claims.AccountID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func accountFilterFromQuery(c *gin.Context) models.AccountFilter {
	filter := models.AccountFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if raw := c.Query("approved"); raw != "" {
		if approved, err := strconv.ParseBool(raw); err == nil {
			filter.Approved = &approved
		}
	}
	if raw := c.Query("role"); raw != "" {
		role := models.Role(raw)
		filter.Role = &role
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(c.Query("pageSize")); err == nil {
		filter.PageSize = pageSize
	}
	return filter
}
