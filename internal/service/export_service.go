package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
	"github.com/atelierhq/onboarding-api/pkg/export"
)

type exportSessionReader interface {
	FindByID(ctx context.Context, id, organizationID string) (*models.Session, error)
	FindWithTemplate(ctx context.Context, id string) (*models.SessionWithTemplate, error)
}

type exportResponseReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Response, error)
}

// ExportService renders a session's answers into a PDF summary for the admin
// surface.
type ExportService struct {
	sessions  exportSessionReader
	responses exportResponseReader
	pdf       *export.PDFExporter
}

// NewExportService constructs an ExportService.
func NewExportService(sessions exportSessionReader, responses exportResponseReader, pdf *export.PDFExporter) *ExportService {
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{sessions: sessions, responses: responses, pdf: pdf}
}

// SessionSummaryPDF builds the step/field/answer table for a session and
// renders it. Field labels come from the template version the session was
// created from, so historical exports stay faithful to what the client saw.
func (s *ExportService) SessionSummaryPDF(ctx context.Context, sessionID, organizationID string) ([]byte, string, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	session, err := s.sessions.FindWithTemplate(ctx, sessionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session template")
	}

	responses, err := s.responses.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
	}

	answered := make(map[models.RequiredFieldRef]models.FieldValue, len(responses))
	for _, r := range responses {
		answered[models.RequiredFieldRef{StepID: r.StepID, FieldID: r.FieldID}] = r.Value
	}

	dataset := export.Dataset{Headers: []string{"Step", "Field", "Answer"}}
	for _, step := range session.TemplateSteps {
		for _, field := range step.Fields {
			value, ok := answered[models.RequiredFieldRef{StepID: step.ID, FieldID: field.ID}]
			if !ok {
				value = models.NullValue()
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Step":   step.Title,
				"Field":  field.Label,
				"Answer": value.Display(),
			})
		}
	}

	title := fmt.Sprintf("%s - onboarding summary (%d%%)", session.TemplateName, session.CompletionPercentage)
	data, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}

	fileName := fmt.Sprintf("onboarding-session-%s.pdf", sessionID)
	return data, fileName, nil
}
