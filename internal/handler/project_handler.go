package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/service"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
	"github.com/atelierhq/onboarding-api/pkg/response"
)

// ProjectHandler exposes project endpoints, including the risk score read.
type ProjectHandler struct {
	projects *service.ProjectService
	risk     *service.RiskService
}

// NewProjectHandler constructs ProjectHandler.
func NewProjectHandler(projects *service.ProjectService, risk *service.RiskService) *ProjectHandler {
	return &ProjectHandler{projects: projects, risk: risk}
}

// List godoc
// @Summary List projects with onboarding state
// @Tags Projects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	items, err := h.projects.List(c.Request.Context(), claims.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get project detail
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	project, err := h.projects.Get(c.Request.Context(), c.Param("id"), claims.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Create godoc
// @Summary Create a project with its onboarding session
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body dto.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	result, err := h.projects.Create(c.Request.Context(), claims.OrganizationID, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Risk godoc
// @Summary Calculate the risk score for a project's onboarding session
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/risk [get]
func (h *ProjectHandler) Risk(c *gin.Context) {
	claims := claimsFromContext(c)
	project, err := h.projects.Get(c.Request.Context(), c.Param("id"), claims.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if project.OnboardingSessionID == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "project has no onboarding session"))
		return
	}

	score, err := h.risk.CalculateRiskScore(c.Request.Context(), service.RiskInput{
		SessionID:   *project.OnboardingSessionID,
		ServiceType: project.ServiceType,
		CreatedAt:   project.CreatedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "session not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}
