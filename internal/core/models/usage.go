package models

import "time"

// WindowKey names one rate-limit window
type WindowKey string

const (
	WindowFiveHour     WindowKey = "fiveHour"
	WindowSevenDay     WindowKey = "sevenDay"
	WindowSonnetWeekly WindowKey = "sonnetWeekly"
	WindowOpusWeekly   WindowKey = "opusWeekly"
	WindowExtraUsage   WindowKey = "extraUsage"
)

// WindowKeys lists every known window in display order
var WindowKeys = []WindowKey{
	WindowFiveHour,
	WindowSevenDay,
	WindowSonnetWeekly,
	WindowOpusWeekly,
	WindowExtraUsage,
}

// Label is the human readable name used in notifications and the tray
func (k WindowKey) Label() string {
	switch k {
	case WindowFiveHour:
		return "Session (5h)"
	case WindowSevenDay:
		return "Weekly (7d)"
	case WindowSonnetWeekly:
		return "Weekly Sonnet"
	case WindowOpusWeekly:
		return "Weekly Opus"
	case WindowExtraUsage:
		return "Extra usage"
	default:
		return string(k)
	}
}

// UsageWindow is the utilization of a single rate-limit window.
// Utilization is already a 0-100 percentage.
type UsageWindow struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    *string `json:"resets_at"`
}

// ResetTime parses ResetsAt
func (w UsageWindow) ResetTime() (time.Time, bool) {
	if w.ResetsAt == nil || *w.ResetsAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, *w.ResetsAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtraUsage is the metered overage window
type ExtraUsage struct {
	IsEnabled    bool     `json:"is_enabled"`
	MonthlyLimit *float64 `json:"monthly_limit"`
	UsedCredits  *float64 `json:"used_credits"`
	Utilization  *float64 `json:"utilization"`
}

// UsageResponse is the body returned by the OAuth usage endpoint
type UsageResponse struct {
	FiveHour       *UsageWindow `json:"five_hour"`
	SevenDay       *UsageWindow `json:"seven_day"`
	SevenDaySonnet *UsageWindow `json:"seven_day_sonnet,omitempty"`
	SevenDayOpus   *UsageWindow `json:"seven_day_opus,omitempty"`
	ExtraUsage     *ExtraUsage  `json:"extra_usage,omitempty"`
}

// Utilizations returns the utilization of every window present in the
// response, keyed by window. Extra usage only counts when enabled.
func (r *UsageResponse) Utilizations() map[WindowKey]float64 {
	out := make(map[WindowKey]float64)
	if r == nil {
		return out
	}
	if r.FiveHour != nil {
		out[WindowFiveHour] = r.FiveHour.Utilization
	}
	if r.SevenDay != nil {
		out[WindowSevenDay] = r.SevenDay.Utilization
	}
	if r.SevenDaySonnet != nil {
		out[WindowSonnetWeekly] = r.SevenDaySonnet.Utilization
	}
	if r.SevenDayOpus != nil {
		out[WindowOpusWeekly] = r.SevenDayOpus.Utilization
	}
	if r.ExtraUsage != nil && r.ExtraUsage.IsEnabled && r.ExtraUsage.Utilization != nil {
		out[WindowExtraUsage] = *r.ExtraUsage.Utilization
	}
	return out
}

// OAuthTokens is the token endpoint's answer to a refresh grant
type OAuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}
