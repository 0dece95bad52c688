package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

type workflowStore interface {
	ListRules(ctx context.Context, activeOnly bool) ([]models.WorkflowRule, error)
	UpsertRule(ctx context.Context, rule *models.WorkflowRule) error
}

// WorkflowService manages the rules that route approval requests.
type WorkflowService struct {
	store     workflowStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(store workflowStore, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{store: store, validator: validate, logger: logger}
}

// List returns every rule in evaluation order.
func (s *WorkflowService) List(ctx context.Context) ([]models.WorkflowRule, error) {
	rules, err := s.store.ListRules(ctx, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workflow rules")
	}
	return rules, nil
}

// Create stores a rule, replacing any rule with the same name.
func (s *WorkflowService) Create(ctx context.Context, req dto.CreateWorkflowRuleRequest) (*models.WorkflowRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow rule")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := &models.WorkflowRule{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Triggers:    models.WorkflowTriggers(req.Triggers),
		Approvers:   models.StringList(req.Approvers),
		SLAHours:    req.SLAHours,
		Priority:    models.Priority(req.Priority),
		Active:      active,
		Position:    req.Position,
	}
	if err := s.store.UpsertRule(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save workflow rule")
	}
	return rule, nil
}

// Match returns the first active rule whose triggers all hold, or nil.
func (s *WorkflowService) Match(ctx context.Context, fields map[string]string) (*models.WorkflowRule, error) {
	rules, err := s.store.ListRules(ctx, true)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].Matches(fields) {
			return &rules[i], nil
		}
	}
	return nil, nil
}

type workflowSeedFile struct {
	Rules []workflowSeedRule `yaml:"rules"`
}

type workflowSeedRule struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Triggers    []models.WorkflowTrigger `yaml:"triggers"`
	Approvers   []string                 `yaml:"approvers"`
	SLAHours    int                      `yaml:"slaHours"`
	Priority    string                   `yaml:"priority"`
	Active      *bool                    `yaml:"active"`
}

// Seed upserts the rules declared in a YAML file. Rules keep the order of
// the file. A missing file is not an error.
func (s *WorkflowService) Seed(ctx context.Context, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("workflow seed file not found, skipping", zap.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("read workflow seed: %w", err)
	}
	return s.SeedBytes(ctx, raw)
}

// SeedBytes upserts the rules of a YAML document.
func (s *WorkflowService) SeedBytes(ctx context.Context, raw []byte) (int, error) {
	var doc workflowSeedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow seed")
	}
	for i, seed := range doc.Rules {
		req := dto.CreateWorkflowRuleRequest{
			Name:        seed.Name,
			Description: seed.Description,
			Triggers:    seed.Triggers,
			Approvers:   seed.Approvers,
			SLAHours:    seed.SLAHours,
			Priority:    seed.Priority,
			Active:      seed.Active,
			Position:    i + 1,
		}
		if _, err := s.Create(ctx, req); err != nil {
			return i, fmt.Errorf("seed rule %q: %w", seed.Name, err)
		}
	}
	s.logger.Info("workflow rules seeded", zap.Int("count", len(doc.Rules)))
	return len(doc.Rules), nil
}
