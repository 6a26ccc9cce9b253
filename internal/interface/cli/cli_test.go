package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ccdash/internal/core/claudejson"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/transcript"
)

func TestTruncateSummary(t *testing.T) {
	assert.Equal(t, "short one", truncateSummary("short\n  one", 80))

	long := strings.Repeat("word ", 30)
	got := truncateSummary(long, 40)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), 43)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, "..."), " "))

	// Multi-byte runes are never split
	got = truncateSummary(strings.Repeat("é", 50), 10)
	assert.Equal(t, strings.Repeat("é", 10)+"...", got)
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2 hours ago", formatTimestamp(now.Add(-2*time.Hour), now))
	assert.Equal(t, "Mar 3", formatTimestamp(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "Dec 24, 2024", formatTimestamp(time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC), now))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 match", pluralize(1, "match", "matches"))
	assert.Equal(t, "4 matches", pluralize(4, "match", "matches"))
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "true", "yes", "1"} {
		v, err := parseOnOff(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"off", "false", "no", "0"} {
		v, err := parseOnOff(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}

func TestUsageBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", usageBar(50, 10))
	assert.Equal(t, "██████████", usageBar(120, 10))
	assert.Equal(t, "░░░░░░░░░░", usageBar(0, 10))
}

func TestPrintUsage(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	reset := "2025-06-10T14:30:00Z"
	limit, used := 5000.0, 1234.0
	u := &models.UsageResponse{
		FiveHour: &models.UsageWindow{Utilization: 91.6, ResetsAt: &reset},
		SevenDay: &models.UsageWindow{Utilization: 80},
		ExtraUsage: &models.ExtraUsage{
			IsEnabled:    true,
			MonthlyLimit: &limit,
			UsedCredits:  &used,
		},
	}

	var buf bytes.Buffer
	printUsage(&buf, u, now.Add(-time.Minute), now)
	out := buf.String()

	assert.Contains(t, out, "92%")
	assert.Contains(t, out, "resets in 2h 30m")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "NEAR LIMIT")
	assert.Contains(t, out, "Extra usage: $12.34 of $50.00")
	assert.Contains(t, out, "Updated 1 minute ago")

	buf.Reset()
	printUsage(&buf, nil, time.Time{}, now)
	assert.Equal(t, "No usage data.\n", buf.String())
}

func TestRenderMarkdown(t *testing.T) {
	meta := models.SessionMeta{ID: "abc", ProjectPath: "/work/api", Summary: "Fix tests", LastTimestamp: "2025-06-01T10:00:00Z"}
	messages := []transcript.Message{
		{Role: transcript.RoleUser, Timestamp: "2025-06-01T09:00:00Z", Blocks: []transcript.Block{
			transcript.TextBlock{Text: "run the tests"},
		}},
		{Role: transcript.RoleAssistant, Blocks: []transcript.Block{
			transcript.ThinkingBlock{Text: "they probably fail"},
			transcript.ToolUseBlock{Name: "Bash", Input: `{"command": "go test"}`},
		}},
		{Role: transcript.RoleAssistant, Blocks: []transcript.Block{
			transcript.TextBlock{Text: "all green"},
		}},
	}

	var buf bytes.Buffer
	renderMarkdown(&buf, meta, messages, renderOptions{})
	out := buf.String()
	assert.Contains(t, out, "# Fix tests")
	assert.Contains(t, out, "**Session ID:** `abc`")
	assert.Contains(t, out, "**USER** _Jun 01, 2025 09:00:00_")
	assert.Contains(t, out, "run the tests")
	assert.Contains(t, out, "all green")
	assert.NotContains(t, out, "Bash", "tool calls hidden by default")
	assert.NotContains(t, out, "they probably fail")

	buf.Reset()
	renderMarkdown(&buf, meta, messages, renderOptions{Tools: true, Thinking: true, Offset: 1, Limit: 1})
	out = buf.String()
	assert.Contains(t, out, "**Tool:** Bash")
	assert.Contains(t, out, "> _thinking:_ they probably fail")
	assert.NotContains(t, out, "run the tests")
	assert.NotContains(t, out, "all green")
	assert.Contains(t, out, "_1 more messages; use --offset 2 to continue_")
}

func TestFormatTimestampForExport(t *testing.T) {
	assert.Equal(t, "Jun 01, 2025 10:00:00", formatTimestampForExport("2025-06-01T10:00:00Z"))
	assert.Equal(t, "Jun 01, 2025 10:00:00", formatTimestampForExport("2025-06-01 10:00:00"))
	assert.Equal(t, "not a time", formatTimestampForExport("not a time"))
}

func TestServerVersion(t *testing.T) {
	saved := versionInfo
	defer func() { versionInfo = saved }()

	versionInfo = ""
	assert.Equal(t, "dev", serverVersion())

	versionInfo = "1.2.0 (commit: abc, built: today)"
	assert.Equal(t, "1.2.0", serverVersion())
}

func TestProjectMetricFormatting(t *testing.T) {
	cost := 1.234
	assert.Equal(t, "$1.23", formatCost(&cost))
	assert.Equal(t, "-", formatCost(nil))

	added := int64(12)
	assert.Equal(t, "+12/-0", formatLines(claudejson.ProjectMetrics{LastLinesAdded: &added}))
	assert.Equal(t, "-", formatLines(claudejson.ProjectMetrics{}))

	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "acme/web", orDash("acme/web"))
}

func TestAccountRows(t *testing.T) {
	rows := accountRows(&claudejson.Account{
		EmailAddress:         "dev@example.com",
		OrganizationName:     "Acme",
		HasExtraUsageEnabled: true,
		AccountUUID:          "acc-1",
	})
	assert.Equal(t, [][2]string{
		{"Email", "dev@example.com"},
		{"Organization", "Acme"},
		{"Extra Usage", "enabled"},
		{"Account ID", "acc-1"},
	}, rows)
}
