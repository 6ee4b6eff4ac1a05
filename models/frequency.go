package models

import "strings"

// Frequency is how often a recurring delivery regenerates.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// IsValidFrequency returns the typed Frequency and true if freqStr names one.
func IsValidFrequency(freqStr string) (Frequency, bool) {
	f := Frequency(strings.ToLower(strings.TrimSpace(freqStr)))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return f, true
	default:
		return "", false
	}
}
