package claudejson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// ErrNoStatsCache is returned when the CLI has not written stats-cache.json yet
var ErrNoStatsCache = errors.New("stats-cache.json not found")

// GlobalStats is ~/.claude/stats-cache.json, extended with days the CLI has
// not folded into the cache yet
type GlobalStats struct {
	Version                     int                   `json:"version,omitempty"`
	LastComputedDate            string                `json:"lastComputedDate,omitempty"`
	DailyActivity               []DailyActivity       `json:"dailyActivity"`
	DailyModelTokens            []DailyModelTokens    `json:"dailyModelTokens"`
	ModelUsage                  map[string]ModelUsage `json:"modelUsage"`
	TotalSessions               int64                 `json:"totalSessions"`
	TotalMessages               int64                 `json:"totalMessages"`
	LongestSession              *LongestSession       `json:"longestSession,omitempty"`
	FirstSessionDate            string                `json:"firstSessionDate,omitempty"`
	HourCounts                  map[string]int64      `json:"hourCounts"`
	TotalSpeculationTimeSavedMs int64                 `json:"totalSpeculationTimeSavedMs,omitempty"`
}

// DailyActivity counts one day's messages, sessions and tool calls
type DailyActivity struct {
	Date          string `json:"date"`
	MessageCount  int64  `json:"messageCount"`
	SessionCount  int64  `json:"sessionCount"`
	ToolCallCount int64  `json:"toolCallCount"`
}

// DailyModelTokens is one day's input plus output tokens per model
type DailyModelTokens struct {
	Date          string           `json:"date"`
	TokensByModel map[string]int64 `json:"tokensByModel"`
}

// LongestSession is the longest session the CLI has seen
type LongestSession struct {
	SessionID    string `json:"sessionId,omitempty"`
	Duration     int64  `json:"duration,omitempty"`
	MessageCount int64  `json:"messageCount,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// StatsCachePath is <claude dir>/stats-cache.json
func (r *Reader) StatsCachePath() string {
	return filepath.Join(r.claudeDir, "stats-cache.json")
}

type dayTotals struct {
	messages, toolCalls int64
	sessions            map[string]struct{}
	tokensByModel       map[string]int64
}

// GlobalStats reads the stats cache and adds the days after its cutoff, up
// to and including today, from the session logs
func (r *Reader) GlobalStats(ctx context.Context, now time.Time) (*GlobalStats, error) {
	path := r.StatsCachePath()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoStatsCache, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var stats GlobalStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if stats.HourCounts == nil {
		stats.HourCounts = make(map[string]int64)
	}

	if err := r.supplement(ctx, &stats, now); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *Reader) supplement(ctx context.Context, stats *GlobalStats, now time.Time) error {
	cutoff := stats.LastComputedDate
	if cutoff == "" && len(stats.DailyActivity) > 0 {
		cutoff = stats.DailyActivity[len(stats.DailyActivity)-1].Date
	}
	if cutoff == "" {
		cutoff = "1970-01-01"
	}
	if cutoff >= now.Format(time.DateOnly) {
		return nil
	}

	days := make(map[string]*dayTotals)
	sessions := make(map[string]struct{})
	var messages int64

	err := walkLogs(ctx, r.projectsDir(), func(l *logLine) {
		if len(l.Timestamp) < 10 {
			return
		}
		date := l.Timestamp[:10]
		if date <= cutoff || (l.Type != "user" && l.Type != "assistant") {
			return
		}
		day := days[date]
		if day == nil {
			day = &dayTotals{sessions: make(map[string]struct{}), tokensByModel: make(map[string]int64)}
			days[date] = day
		}

		if l.Type == "user" {
			day.messages++
			messages++
			if l.SessionID != "" {
				day.sessions[l.SessionID] = struct{}{}
				sessions[l.SessionID] = struct{}{}
			}
			return
		}

		day.toolCalls += int64(countToolUses(l.Message.Content))
		if u := l.Message.Usage; u != nil && l.Message.Model != "" {
			if n := u.InputTokens + u.OutputTokens; n > 0 {
				day.tokensByModel[l.Message.Model] += n
			}
		}
		if len(l.Timestamp) >= 13 {
			if hour, err := strconv.Atoi(l.Timestamp[11:13]); err == nil {
				stats.HourCounts[strconv.Itoa(hour)]++
			}
		}
	})
	if err != nil {
		return err
	}

	for _, date := range slices.Sorted(maps.Keys(days)) {
		day := days[date]
		stats.DailyActivity = append(stats.DailyActivity, DailyActivity{
			Date:          date,
			MessageCount:  day.messages,
			SessionCount:  int64(len(day.sessions)),
			ToolCallCount: day.toolCalls,
		})
		if len(day.tokensByModel) > 0 {
			stats.DailyModelTokens = append(stats.DailyModelTokens, DailyModelTokens{
				Date:          date,
				TokensByModel: day.tokensByModel,
			})
		}
	}
	stats.TotalMessages += messages
	stats.TotalSessions += int64(len(sessions))
	return nil
}

type contentBlock struct {
	Type string `json:"type"`
}

func countToolUses(content json.RawMessage) int {
	var blocks []contentBlock
	if json.Unmarshal(content, &blocks) != nil {
		return 0
	}
	return lo.CountBy(blocks, func(b contentBlock) bool {
		return b.Type == "tool_use"
	})
}
