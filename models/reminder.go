package models

import "time"

// ReminderNotice is what gets handed to the reminder providers when a
// delivery's outstanding recipients should be nudged.
type ReminderNotice struct {
	DeliveryID    string    `json:"delivery_id"`
	TemplateTitle string    `json:"template_title"`
	TargetGroup   string    `json:"target_group"`
	Outstanding   int       `json:"outstanding"`
	WindowEnd     time.Time `json:"window_end"`
	RequestedAt   time.Time `json:"requested_at"`
}
