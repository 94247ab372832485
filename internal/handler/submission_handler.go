package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elevatedtutors/tutors-api/internal/models"
	"github.com/elevatedtutors/tutors-api/internal/service"
	appErrors "github.com/elevatedtutors/tutors-api/pkg/errors"
	"github.com/elevatedtutors/tutors-api/pkg/response"
)

// SubmissionHandler exposes submission upload, grading and download endpoints.
type SubmissionHandler struct {
	service *service.SubmissionService
	reports *service.ReportService
}

// NewSubmissionHandler creates a new handler.
func NewSubmissionHandler(svc *service.SubmissionService, reports *service.ReportService) *SubmissionHandler {
	return &SubmissionHandler{service: svc, reports: reports}
}

// Create godoc
// @Summary Upload a submission
// @Description Create a submission with attachments (multipart form)
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param subject_id formData string true "Subject ID"
// @Param notes formData string false "Notes"
// @Param files formData file false "Attachments"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	req := service.CreateSubmissionRequest{
		Title:     c.PostForm("title"),
		Notes:     c.PostForm("notes"),
		SubjectID: c.PostForm("subject_id"),
	}

	var uploads []service.SubmissionUpload
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, header := range form.File["files"] {
			f, err := header.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file"))
				return
			}
			defer f.Close()
			uploads = append(uploads, service.SubmissionUpload{
				FileName: header.Filename,
				Size:     header.Size,
				Reader:   f,
			})
		}
	}

	submission, err := h.service.Create(c.Request.Context(), req, uploads, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, submission)
}

// Get godoc
// @Summary Get a submission with its files
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, files, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"submission": submission, "files": files}, nil)
}

// ListByStudent godoc
// @Summary List a student's submissions
// @Tags Submissions
// @Produce json
// @Param id path string true "Student account ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/submissions [get]
func (h *SubmissionHandler) ListByStudent(c *gin.Context) {
	submissions, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submissions, nil)
}

// StudentOverview godoc
// @Summary Tutor's student overview
// @Description One row per assigned student with the latest submission
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutor/students [get]
func (h *SubmissionHandler) StudentOverview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tutorID := claims.AccountID
	if claims.HasRole(models.RoleAdmin) {
		if id := c.Query("tutorId"); id != "" {
			tutorID = id
		}
	}

	summaries, err := h.service.LatestPerStudent(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summaries, nil)
}

// StudentOverviewReport godoc
// @Summary Export the student overview
// @Description Download the tutor's student overview as CSV or PDF
// @Tags Submissions
// @Produce octet-stream
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /tutor/students/report [get]
func (h *SubmissionHandler) StudentOverviewReport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tutorID := claims.AccountID
	if claims.HasRole(models.RoleAdmin) {
		if id := c.Query("tutorId"); id != "" {
			tutorID = id
		}
	}

	report, err := h.reports.StudentOverview(c.Request.Context(), tutorID, service.ReportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+report.FileName)
	c.Data(http.StatusOK, report.ContentType, report.Data)
}

// SubmissionHistoryReport godoc
// @Summary Export a student's submission history
// @Description Download a student's submissions with grades as CSV or PDF
// @Tags Submissions
// @Produce octet-stream
// @Param id path string true "Student ID"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/submissions/report [get]
func (h *SubmissionHandler) SubmissionHistoryReport(c *gin.Context) {
	report, err := h.reports.SubmissionHistory(c.Request.Context(), c.Param("id"), claimsFromContext(c), service.ReportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+report.FileName)
	c.Data(http.StatusOK, report.ContentType, report.Data)
}

// Feedback godoc
// @Summary Grade a submission
// @Description Record tutor notes and an optional grade; marks the submission graded
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.FeedbackRequest true "Feedback"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /submissions/{id}/feedback [post]
func (h *SubmissionHandler) Feedback(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	submission, err := h.service.Feedback(c.Request.Context(), c.Param("id"), req, claimsFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submission, nil)
}

// FileURL godoc
// @Summary Issue a signed download URL
// @Tags Submissions
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/url [get]
func (h *SubmissionHandler) FileURL(c *gin.Context) {
	signed, err := h.service.FileURL(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download a file via signed token
// @Tags Submissions
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/download [get]
func (h *SubmissionHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	f, file, err := h.service.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", "attachment; filename="+file.FileName)
	c.File(f.Name())
}
