package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elevatedtutors/tutors-api/internal/models"
	"github.com/elevatedtutors/tutors-api/internal/service"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
	"github.com/elevatedtutors/tutors-api/pkg/response"
)

// SessionHandler exposes session scheduling endpoints.
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param subjectId query string false "Filter by subject"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.List(c.Request.Context(), h.filterFromRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

// Schedule godoc
// @Summary Sessions grouped by day
// @Tags Sessions
// @Produce json
// @Param subjectId query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /sessions/schedule [get]
func (h *SessionHandler) Schedule(c *gin.Context) {
	days, err := h.service.Schedule(c.Request.Context(), h.filterFromRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, days, nil)
}

// Current godoc
// @Summary Next scheduled session
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions/current [get]
func (h *SessionHandler) Current(c *gin.Context) {
	session, err := h.service.Current(c.Request.Context(), h.filterFromRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Schedule a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// UpdateStatus godoc
// @Summary Complete or cancel a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/status [patch]
func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	session, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

func (h *SessionHandler) filterFromRequest(c *gin.Context) models.SessionFilter {
	filter := models.SessionFilter{
		SubjectID: c.Query("subjectId"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.SessionStatus(raw)
		filter.Status = &status
	}

	// Participants see their own sessions; admins may scope explicitly.
	claims := claimsFromContext(c)
	if claims != nil && !claims.HasRole(models.RoleAdmin) {
		if claims.HasRole(models.RoleTutor) {
			filter.TutorID = claims.AccountID
		} else {
			filter.StudentID = claims.AccountID
		}
		return filter
	}
	filter.TutorID = c.Query("tutorId")
	filter.StudentID = c.Query("studentId")
	return filter
}
