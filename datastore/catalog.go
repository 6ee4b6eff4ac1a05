package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreybb/dispatch/models"
	"github.com/google/uuid"
)

// TemplateCatalog is the in-memory assessment/survey template catalog.
type TemplateCatalog struct {
	mu        sync.RWMutex
	templates map[string]models.AssessmentTemplate
}

// NewTemplateCatalog creates an empty TemplateCatalog.
func NewTemplateCatalog() *TemplateCatalog {
	return &TemplateCatalog{templates: make(map[string]models.AssessmentTemplate)}
}

// AddTemplate validates and registers a template, assigning an ID when unset.
func (c *TemplateCatalog) AddTemplate(ctx context.Context, t *models.AssessmentTemplate) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: template title cannot be empty", models.ErrValidation)
	}
	kind, ok := models.IsValidDeliveryKind(string(t.Kind))
	if !ok {
		return fmt.Errorf("%w: invalid template kind %q. Must be one of: %s, %s",
			models.ErrValidation, t.Kind, models.DeliveryKindAssessment, models.DeliveryKindSurvey)
	}
	if t.EstimatedMinutes < 0 {
		return fmt.Errorf("%w: estimated minutes cannot be negative", models.ErrValidation)
	}
	t.Kind = kind
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[t.ID] = *t
	return nil
}

// LookupTemplate returns the immutable reference for a template ID.
func (c *TemplateCatalog) LookupTemplate(ctx context.Context, templateID string) (models.TemplateRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.templates[templateID]
	if !ok {
		return models.TemplateRef{}, fmt.Errorf("template %s: %w", templateID, models.ErrNotFound)
	}
	return t.Ref(), nil
}

// ListTemplates returns every template ordered by title.
func (c *TemplateCatalog) ListTemplates(ctx context.Context) []models.AssessmentTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]models.AssessmentTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Title == list[j].Title {
			return list[i].ID < list[j].ID
		}
		return list[i].Title < list[j].Title
	})
	return list
}

// GroupDirectory resolves recipient groups to their current member counts.
// Group names are matched case-insensitively.
type GroupDirectory struct {
	mu     sync.RWMutex
	groups map[string]models.RecipientGroup
}

// NewGroupDirectory creates an empty GroupDirectory.
func NewGroupDirectory() *GroupDirectory {
	return &GroupDirectory{groups: make(map[string]models.RecipientGroup)}
}

func groupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SetMemberCount creates or updates a group.
func (g *GroupDirectory) SetMemberCount(ctx context.Context, name string, members int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: group name cannot be empty", models.ErrValidation)
	}
	if members < 0 {
		return fmt.Errorf("%w: member count cannot be negative", models.ErrValidation)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.groups[groupKey(name)] = models.RecipientGroup{Name: strings.TrimSpace(name), MemberCount: members}
	return nil
}

// MemberCount returns the current number of members in a group.
func (g *GroupDirectory) MemberCount(ctx context.Context, group string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rg, ok := g.groups[groupKey(group)]
	if !ok {
		return 0, fmt.Errorf("group %q: %w", group, models.ErrNotFound)
	}
	return rg.MemberCount, nil
}

// ListGroups returns every group ordered by name.
func (g *GroupDirectory) ListGroups(ctx context.Context) []models.RecipientGroup {
	g.mu.RLock()
	defer g.mu.RUnlock()

	list := make([]models.RecipientGroup, 0, len(g.groups))
	for _, rg := range g.groups {
		list = append(list, rg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
