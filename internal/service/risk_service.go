package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

type riskSessionReader interface {
	FindWithTemplate(ctx context.Context, id string) (*models.SessionWithTemplate, error)
}

type riskResponseReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Response, error)
}

type riskFileCounter interface {
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

// Service types whose delivery complexity warrants a flat risk surcharge.
var highComplexityServices = map[string]struct{}{
	"ecommerce":  {},
	"saas":       {},
	"enterprise": {},
	"ai-ml":      {},
}

// RiskInput identifies the session being scored.
type RiskInput struct {
	SessionID   string
	ServiceType string
	CreatedAt   time.Time
}

// RiskService derives a weighted project risk score from onboarding state.
// Scoring is read-only and recomputed on every call, so the dashboard can
// invoke it freely without staleness concerns.
type RiskService struct {
	sessions  riskSessionReader
	responses riskResponseReader
	files     riskFileCounter
	now       func() time.Time
}

// NewRiskService constructs a RiskService.
func NewRiskService(sessions riskSessionReader, responses riskResponseReader, files riskFileCounter) *RiskService {
	return &RiskService{sessions: sessions, responses: responses, files: files, now: time.Now}
}

// CalculateRiskScore sums four capped factors and buckets the result:
// missing required fields (40), missing required file uploads (20), delayed
// completion (20), and service complexity (10). Factor strings are appended
// in evaluation order.
func (s *RiskService) CalculateRiskScore(ctx context.Context, input RiskInput) (*models.RiskScore, error) {
	session, err := s.sessions.FindWithTemplate(ctx, input.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	factors := []string{}
	score := 0.0

	// 1. Missing required fields (max 40).
	required := session.TemplateSteps.RequiredFields()
	if len(required) > 0 {
		responses, err := s.responses.ListBySession(ctx, input.SessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
		}
		missing := len(required) - countFilled(required, responses)
		if missing > 0 {
			score += math.Min(40, float64(missing)/float64(len(required))*40)
			factors = append(factors, fmt.Sprintf("%d required field(s) missing", missing))
		}
	}

	// 2. Missing required file uploads (max 20). An aggregate count compare:
	// required file fields vs. upload rows linked to the session, not a
	// per-field match.
	if fileFields := session.TemplateSteps.RequiredFileFieldCount(); fileFields > 0 {
		uploaded, err := s.files.CountBySession(ctx, input.SessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count uploads")
		}
		if missingFiles := fileFields - uploaded; missingFiles > 0 {
			score += math.Min(20, float64(missingFiles)/float64(fileFields)*20)
			factors = append(factors, fmt.Sprintf("%d required file(s) not uploaded", missingFiles))
		}
	}

	// 3. Delayed completion (max 20).
	daysSinceCreation := int(s.now().UTC().Sub(input.CreatedAt.UTC()).Hours() / 24)
	if daysSinceCreation > 7 && session.CompletionPercentage < 100 {
		score += math.Min(20, float64(daysSinceCreation-7)/14*20)
		factors = append(factors, fmt.Sprintf("%d days since creation, still incomplete", daysSinceCreation))
	}

	// 4. High complexity service type (flat 10).
	if _, ok := highComplexityServices[strings.ToLower(input.ServiceType)]; ok {
		score += 10
		factors = append(factors, fmt.Sprintf("High-complexity service type: %s", input.ServiceType))
	}

	level := models.RiskLevelLow
	switch {
	case score >= 60:
		level = models.RiskLevelHigh
	case score >= 30:
		level = models.RiskLevelMedium
	}

	return &models.RiskScore{
		Score:   int(math.Round(score)),
		Level:   level,
		Factors: factors,
	}, nil
}
