package usage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/neilberkman/ccdash/internal/core/kv"
	"github.com/neilberkman/ccdash/internal/core/models"
)

// CacheKey is where the tray snapshot is stored
const CacheKey = "usageCache"

// IdleTooltip is shown when there is no usage to report
const IdleTooltip = "ccdash - Claude Code Dashboard"

// CacheSnapshot is the usage written for the tray on every successful fetch
type CacheSnapshot struct {
	FiveHour     *models.UsageWindow `json:"fiveHour"`
	SevenDay     *models.UsageWindow `json:"sevenDay"`
	SonnetWeekly *models.UsageWindow `json:"sonnetWeekly"`
	OpusWeekly   *models.UsageWindow `json:"opusWeekly"`
	ExtraUsage   *models.ExtraUsage  `json:"extraUsage"`
	CachedAt     int64               `json:"cachedAt"`
}

// NewCacheSnapshot copies every window of u
func NewCacheSnapshot(u *models.UsageResponse, at time.Time) CacheSnapshot {
	return CacheSnapshot{
		FiveHour:     u.FiveHour,
		SevenDay:     u.SevenDay,
		SonnetWeekly: u.SevenDaySonnet,
		OpusWeekly:   u.SevenDayOpus,
		ExtraUsage:   u.ExtraUsage,
		CachedAt:     at.UnixMilli(),
	}
}

// Usage converts the snapshot back to an API response
func (c CacheSnapshot) Usage() *models.UsageResponse {
	return &models.UsageResponse{
		FiveHour:       c.FiveHour,
		SevenDay:       c.SevenDay,
		SevenDaySonnet: c.SonnetWeekly,
		SevenDayOpus:   c.OpusWeekly,
		ExtraUsage:     c.ExtraUsage,
	}
}

// CachedTime is when the snapshot was written
func (c CacheSnapshot) CachedTime() time.Time {
	return time.UnixMilli(c.CachedAt)
}

// ReadCache loads the tray snapshot. It reports false when none is stored.
func ReadCache(ctx context.Context, store *kv.Store) (CacheSnapshot, bool, error) {
	var snap CacheSnapshot
	found, err := store.Get(ctx, CacheKey, &snap)
	if err != nil {
		return CacheSnapshot{}, false, fmt.Errorf("failed to read usage cache: %w", err)
	}
	return snap, found, nil
}

type trayValue struct {
	label    string
	value    float64
	optional bool
}

func trayValues(u *models.UsageResponse) []trayValue {
	utils := u.Utilizations()
	return []trayValue{
		{"5h", utils[models.WindowFiveHour], false},
		{"7d", utils[models.WindowSevenDay], false},
		{"Sonnet", utils[models.WindowSonnetWeekly], true},
		{"Opus", utils[models.WindowOpusWeekly], true},
		{"Extra", utils[models.WindowExtraUsage], true},
	}
}

// Tooltip renders the tray tooltip. Session and weekly are always shown,
// the per-model and extra windows only when above zero.
func Tooltip(u *models.UsageResponse) string {
	if u == nil {
		return IdleTooltip
	}
	var parts []string
	for _, v := range trayValues(u) {
		if v.optional && v.value <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d%%", v.label, int(math.Round(v.value))))
	}
	return "ccdash - " + strings.Join(parts, " | ")
}

// TrayKey identifies what the tray shows, so unchanged usage is not
// redrawn
func TrayKey(u *models.UsageResponse) string {
	if u == nil {
		return ""
	}
	var parts []string
	for _, v := range trayValues(u) {
		if v.optional && v.value <= 0 {
			continue
		}
		parts = append(parts, strconv.Itoa(int(math.Round(v.value))))
	}
	return strings.Join(parts, "_")
}
