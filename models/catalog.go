package models

import "time"

// AssessmentTemplate is an entry in the template catalog that deliveries are
// created from.
type AssessmentTemplate struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Kind             DeliveryKind `json:"kind"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Ref returns the immutable reference stored on deliveries.
func (t AssessmentTemplate) Ref() TemplateRef {
	return TemplateRef{
		ID:               t.ID,
		Title:            t.Title,
		Kind:             t.Kind,
		EstimatedMinutes: t.EstimatedMinutes,
	}
}

// RecipientGroup is a named set of recipients known to the group directory.
type RecipientGroup struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}
