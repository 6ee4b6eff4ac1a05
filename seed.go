package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/models"
)

var demoGroups = map[string]int{
	"All Staff":   240,
	"Engineering": 42,
	"Sales":       50,
	"Marketing":   18,
}

// seedDemoData fills the in-memory catalog, directory and store with a small
// spread of deliveries around the current date.
func seedDemoData(ctx context.Context, catalog *datastore.TemplateCatalog, groups *datastore.GroupDirectory, store *datastore.DeliveryStore) error {
	for name, members := range demoGroups {
		if err := groups.SetMemberCount(ctx, name, members); err != nil {
			return err
		}
	}

	compliance := &models.AssessmentTemplate{Title: "Annual Compliance Assessment", Kind: models.DeliveryKindAssessment, EstimatedMinutes: 45}
	pulse := &models.AssessmentTemplate{Title: "Weekly Pulse Survey", Kind: models.DeliveryKindSurvey, EstimatedMinutes: 5}
	security := &models.AssessmentTemplate{Title: "Security Awareness Quiz", Kind: models.DeliveryKindAssessment, EstimatedMinutes: 15}
	for _, t := range []*models.AssessmentTemplate{compliance, pulse, security} {
		if err := catalog.AddTemplate(ctx, t); err != nil {
			return err
		}
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	days := func(n int) time.Time { return today.AddDate(0, 0, n) }

	seeds := []struct {
		in       datastore.CreateDeliveryInput
		progress int
	}{
		{datastore.CreateDeliveryInput{TemplateID: compliance.ID, TargetGroup: "All Staff", WindowStart: days(-10), WindowEnd: days(2)}, 180},
		{datastore.CreateDeliveryInput{TemplateID: security.ID, TargetGroup: "Engineering", WindowStart: days(-20), WindowEnd: days(-5)}, 35},
		{datastore.CreateDeliveryInput{TemplateID: security.ID, TargetGroup: "Sales", WindowStart: days(-20), WindowEnd: days(-5)}, 50},
		{datastore.CreateDeliveryInput{TemplateID: compliance.ID, TargetGroup: "Marketing", WindowStart: days(7), WindowEnd: days(21)}, 0},
		{datastore.CreateDeliveryInput{TemplateID: pulse.ID, TargetGroup: "Engineering", WindowStart: days(-2), WindowEnd: days(3),
			Recurring: true, Frequency: models.FrequencyWeekly, DynamicGroup: true}, 12},
		{datastore.CreateDeliveryInput{TemplateID: pulse.ID, TargetGroup: "Field contractors", WindowStart: days(1), WindowEnd: days(6),
			TotalRecipients: intPtr(9), Recurring: true, Frequency: models.FrequencyMonthly}, 0},
	}
	for _, s := range seeds {
		s.in.CreatedBy = "seed"
		d, err := store.Create(ctx, s.in)
		if err != nil {
			return fmt.Errorf("seed delivery for %s: %w", s.in.TargetGroup, err)
		}
		if s.progress > 0 {
			if _, err := store.RecordProgress(ctx, d.ID, s.progress); err != nil {
				return fmt.Errorf("seed progress for %s: %w", s.in.TargetGroup, err)
			}
		}
	}
	return nil
}

func intPtr(n int) *int { return &n }
