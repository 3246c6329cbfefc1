package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atelierhq/onboarding-api/internal/repository"
	"github.com/atelierhq/onboarding-api/internal/service"
	"github.com/atelierhq/onboarding-api/pkg/response"
)

// SessionHandler exposes the admin view over onboarding sessions.
type SessionHandler struct {
	onboarding *service.OnboardingService
	exporter   *service.ExportService
	audit      *repository.AuditRepository
	files      *repository.FileRepository
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(onboarding *service.OnboardingService, exporter *service.ExportService, audit *repository.AuditRepository, files *repository.FileRepository) *SessionHandler {
	return &SessionHandler{onboarding: onboarding, exporter: exporter, audit: audit, files: files}
}

// Get godoc
// @Summary Get a session with its responses grouped by step
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	detail, err := h.onboarding.GetSessionDetail(c.Request.Context(), c.Param("id"), claims.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.files != nil {
		files, err := h.files.ListBySession(c.Request.Context(), detail.Session.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		detail.Files = files
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a completed session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/approve [post]
func (h *SessionHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	session, err := h.onboarding.Approve(c.Request.Context(), c.Param("id"), claims.OrganizationID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Export godoc
// @Summary Download a PDF summary of a session's answers
// @Tags Sessions
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	data, fileName, err := h.exporter.SessionSummaryPDF(c.Request.Context(), c.Param("id"), claims.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// AuditLogs godoc
// @Summary List recent audit log entries for the organization
// @Tags Sessions
// @Produce json
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *SessionHandler) AuditLogs(c *gin.Context) {
	claims := claimsFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.audit.ListByOrganization(c.Request.Context(), claims.OrganizationID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
