package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/service"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
	"github.com/atelierhq/onboarding-api/pkg/response"
)

// OnboardingHandler exposes the public client-facing wizard. Every route is
// keyed by the session token; no JWT is involved.
type OnboardingHandler struct {
	onboarding *service.OnboardingService
	files      *service.FileService
}

// NewOnboardingHandler constructs OnboardingHandler.
func NewOnboardingHandler(onboarding *service.OnboardingService, files *service.FileService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, files: files}
}

// GetWizard godoc
// @Summary Load the onboarding wizard for a session token
// @Tags Onboarding
// @Produce json
// @Param token path string true "Session token"
// @Success 200 {object} response.Envelope
// @Router /onboarding/{token} [get]
func (h *OnboardingHandler) GetWizard(c *gin.Context) {
	wizard, err := h.onboarding.GetWizard(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wizard, nil)
}

// SaveStep godoc
// @Summary Save a step's answers and optionally submit the session
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param token path string true "Session token"
// @Param payload body dto.SaveStepRequest true "Step answers"
// @Success 200 {object} response.Envelope
// @Router /onboarding/{token} [put]
func (h *OnboardingHandler) SaveStep(c *gin.Context) {
	var req dto.SaveStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.onboarding.SaveStep(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Upload godoc
// @Summary Upload a file for a file-type field
// @Tags Onboarding
// @Accept multipart/form-data
// @Produce json
// @Param token path string true "Session token"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /onboarding/{token}/files [post]
func (h *OnboardingHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	opened, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read file"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	result, err := h.files.Upload(c.Request.Context(), c.Param("token"), fileHeader.Filename, contentType, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
