package types

import "time"

// MinSampleSize is the number of completions a category needs before a pattern is trusted
const MinSampleSize = 3

// LocationCluster is a frequently used place
type LocationCluster struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Frequency int     `json:"frequency"`
}

// UserPattern summarizes historical completions of one category
type UserPattern struct {
	Category          string            `json:"category"`
	PreferredDays     []time.Weekday    `json:"preferredDays"`
	PreferredHours    []int             `json:"preferredHours"`
	AverageDuration   float64           `json:"averageDuration"` // minutes
	FrequentLocations []LocationCluster `json:"frequentLocations"`
	CompletionRate    float64           `json:"completionRate"`
	EnergyLevel       EnergyLevel       `json:"energyLevel"`
	SampleSize        int               `json:"sampleSize"`
}

// IsReliable reports whether the pattern has enough samples
func (p UserPattern) IsReliable() bool {
	return p.SampleSize >= MinSampleSize
}

// PrefersHour reports whether hour is among the preferred hours
func (p UserPattern) PrefersHour(hour int) bool {
	for _, h := range p.PreferredHours {
		if h == hour {
			return true
		}
	}
	return false
}

// PrefersDay reports whether day is among the preferred days
func (p UserPattern) PrefersDay(day time.Weekday) bool {
	for _, d := range p.PreferredDays {
		if d == day {
			return true
		}
	}
	return false
}
