package service

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

// seedFile is the YAML document consumed at startup.
type seedFile struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	OrganizationID string     `yaml:"organizationId"`
	Name           string     `yaml:"name"`
	ServiceType    string     `yaml:"serviceType"`
	Steps          []seedStep `yaml:"steps"`
}

type seedStep struct {
	ID          string      `yaml:"id"`
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Fields      []seedField `yaml:"fields"`
}

type seedField struct {
	ID          string   `yaml:"id"`
	Label       string   `yaml:"label"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	Placeholder string   `yaml:"placeholder"`
	HelpText    string   `yaml:"helpText"`
	Options     []string `yaml:"options"`
}

// TemplateSeeder loads starter templates from a YAML file so a fresh
// deployment has something to onboard against. Seeding is additive: a service
// type that already has an active template is left untouched.
type TemplateSeeder struct {
	repo   templateRepository
	logger *zap.Logger
}

// NewTemplateSeeder constructs a TemplateSeeder.
func NewTemplateSeeder(repo templateRepository, logger *zap.Logger) *TemplateSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateSeeder{repo: repo, logger: logger}
}

// SeedFromFile reads the YAML document at path and creates any missing
// templates. A missing path is not an error; seeding is opt-in.
func (s *TemplateSeeder) SeedFromFile(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("template seed file not found, skipping", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("read seed file: %w", err)
	}

	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, seed := range doc.Templates {
		if seed.OrganizationID == "" || seed.ServiceType == "" {
			return appErrors.Clone(appErrors.ErrConfiguration, "seed templates need organizationId and serviceType")
		}
		if _, err := s.repo.FindActive(ctx, seed.OrganizationID, seed.ServiceType); err == nil {
			continue
		}

		template := &models.Template{
			OrganizationID: seed.OrganizationID,
			Name:           seed.Name,
			ServiceType:    seed.ServiceType,
			Version:        1,
			IsActive:       true,
			Steps:          seed.toSteps(),
		}
		if err := s.repo.Create(ctx, template); err != nil {
			return fmt.Errorf("seed template %q: %w", seed.Name, err)
		}
		created++
	}

	if created > 0 {
		s.logger.Info("seeded onboarding templates", zap.Int("count", created))
	}
	return nil
}

func (t seedTemplate) toSteps() models.TemplateSteps {
	steps := make(models.TemplateSteps, 0, len(t.Steps))
	for _, step := range t.Steps {
		fields := make([]models.TemplateField, 0, len(step.Fields))
		for _, f := range step.Fields {
			field := models.TemplateField{
				ID:          f.ID,
				Label:       f.Label,
				Type:        models.FieldType(f.Type),
				Required:    f.Required,
				Placeholder: f.Placeholder,
				HelpText:    f.HelpText,
			}
			for _, opt := range f.Options {
				field.Options = append(field.Options, models.FieldOption{Label: opt, Value: opt})
			}
			fields = append(fields, field)
		}
		steps = append(steps, models.TemplateStep{
			ID:          step.ID,
			Title:       step.Title,
			Description: step.Description,
			Fields:      fields,
		})
	}
	return steps
}
