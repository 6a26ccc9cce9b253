package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// Status buckets a utilization for display
type Status int

const (
	StatusOK Status = iota
	StatusNearLimit
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusNearLimit:
		return "NEAR LIMIT"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "OK"
	}
}

// StatusOf returns CRITICAL from 90%, NEAR LIMIT from 80%
func StatusOf(utilization float64) Status {
	switch {
	case utilization >= 90:
		return StatusCritical
	case utilization >= 80:
		return StatusNearLimit
	default:
		return StatusOK
	}
}

// Row is one window as shown in the dashboard
type Row struct {
	Key         models.WindowKey `json:"key"`
	Label       string           `json:"label"`
	Utilization float64          `json:"utilization"`
	ResetsAt    time.Time        `json:"resets_at,omitzero"`
	Status      string           `json:"status"`
}

// Rows lists the windows present in u in display order
func Rows(u *models.UsageResponse) []Row {
	if u == nil {
		return nil
	}
	windows := map[models.WindowKey]*models.UsageWindow{
		models.WindowFiveHour:     u.FiveHour,
		models.WindowSevenDay:     u.SevenDay,
		models.WindowSonnetWeekly: u.SevenDaySonnet,
		models.WindowOpusWeekly:   u.SevenDayOpus,
	}
	utils := u.Utilizations()

	var rows []Row
	for _, key := range models.WindowKeys {
		util, ok := utils[key]
		if !ok {
			continue
		}
		row := Row{Key: key, Label: key.Label(), Utilization: util, Status: StatusOf(util).String()}
		if w := windows[key]; w != nil {
			if t, ok := w.ResetTime(); ok {
				row.ResetsAt = t
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// TimeUntil renders the time left before a reset as "3h 12m" or "45m"
func TimeUntil(reset, now time.Time) string {
	if reset.IsZero() {
		return "--"
	}
	diff := reset.Sub(now)
	if diff <= 0 {
		return "Resetting..."
	}
	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Dollars formats an amount of credits, counted in cents
func Dollars(cents *float64) string {
	if cents == nil {
		return "--"
	}
	return fmt.Sprintf("$%.2f", *cents/100)
}

// Percent formats a utilization the way notifications compare it
func Percent(utilization float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(utilization)))
}
