package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neilberkman/ccdash/internal/core/catalog"
	"github.com/neilberkman/ccdash/internal/core/claudejson"
	"github.com/neilberkman/ccdash/internal/core/merge"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/transcript"
	"github.com/neilberkman/ccdash/internal/core/usage"
)

// Searcher is the content search backend
type Searcher interface {
	SearchSessions(ctx context.Context, query string) ([]models.SearchMatch, error)
}

// Deps are the collaborators the tools read from
type Deps struct {
	Catalog   *catalog.Catalog
	Searcher  func() (Searcher, error)
	Sync      func(ctx context.Context) error
	Reader    transcript.Reader
	ClaudeDir func() string
	Usage     *usage.Aggregator
	Connect   func(ctx context.Context) error
	Now       func() time.Time

	// Checker defaults to claudejson.NewChecker
	ClaudeJSON func() *claudejson.Reader
	Checker    *claudejson.Checker
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// SearchSessionsArgs defines arguments for the search_sessions tool
type SearchSessionsArgs struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit,omitempty"`
	Project    string `json:"project,omitempty"`
	AfterDate  string `json:"after_date,omitempty"`
	BeforeDate string `json:"before_date,omitempty"`
}

// ListRecentSessionsArgs defines arguments for the list_recent_sessions tool
type ListRecentSessionsArgs struct {
	Limit   int    `json:"limit,omitempty"`
	Project string `json:"project,omitempty"`
}

// GetTranscriptArgs defines arguments for the get_transcript tool
type GetTranscriptArgs struct {
	SessionID    string `json:"session_id"`
	Offset       int    `json:"offset,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	IncludeTools bool   `json:"include_tools,omitempty"`
}

// GetProjectStatsArgs defines arguments for the get_project_stats tool
type GetProjectStatsArgs struct {
	Project string `json:"project,omitempty"`
}

// GetGlobalStatsArgs defines arguments for the get_global_stats tool
type GetGlobalStatsArgs struct {
	Days int `json:"days,omitempty"`
}

// ListMCPServersArgs defines arguments for the list_mcp_servers tool
type ListMCPServersArgs struct {
	Check *bool `json:"check,omitempty"`
}

// SessionMatch represents a session search result
type SessionMatch struct {
	SessionID   string `json:"session_id"`
	Summary     string `json:"summary"`
	Project     string `json:"project"`
	UpdatedAt   string `json:"updated_at"`
	MatchCount  int    `json:"match_count,omitempty"`
	MatchedText string `json:"matched_text,omitempty"`
	EntryType   string `json:"entry_type,omitempty"`
}

// SessionSummary represents a session in the list view
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Summary      string `json:"summary"`
	Project      string `json:"project"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

// TranscriptMessage is one message of a transcript
type TranscriptMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
	Tools     []Tool `json:"tools,omitempty"`
}

// Tool is a tool call or its result
type Tool struct {
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Transcript is the get_transcript result
type Transcript struct {
	SessionID string              `json:"session_id"`
	Project   string              `json:"project"`
	Total     int                 `json:"total"`
	Offset    int                 `json:"offset"`
	Messages  []TranscriptMessage `json:"messages"`
}

// UsageReport is the get_usage result
type UsageReport struct {
	Windows    []usage.Row `json:"windows"`
	ExtraUsed  string      `json:"extra_used,omitempty"`
	ExtraLimit string      `json:"extra_limit,omitempty"`
	FetchedAt  string      `json:"fetched_at"`
	Tooltip    string      `json:"tooltip"`
}

const (
	defaultSearchLimit     = 10
	defaultListLimit       = 20
	defaultTranscriptLimit = 100
)

// NewServer registers the ccdash tools
func NewServer(version string, deps Deps) *server.MCPServer {
	s := server.NewMCPServer("ccdash", version)

	searchTool := mcp.NewTool("search_sessions",
		mcp.WithDescription("Search Claude Code sessions by project path, summary and message content. Sessions matching on path or summary come first, then sessions matching only in their messages, with the number of occurrences."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term")),
		mcp.WithNumber("limit",
			mcp.Description("Max number of sessions to return (default: 10)")),
		mcp.WithString("project",
			mcp.Description("Filter by project path substring")),
		mcp.WithString("after_date",
			mcp.Description("Only sessions active after this date (e.g. '2025-01-01' or 'yesterday')")),
		mcp.WithString("before_date",
			mcp.Description("Only sessions active before this date")),
	)
	s.AddTool(searchTool, makeSearchSessionsHandler(deps))

	listTool := mcp.NewTool("list_recent_sessions",
		mcp.WithDescription("Get recent Claude Code sessions, optionally filtered by project"),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
		mcp.WithString("project",
			mcp.Description("Filter by project path substring")),
	)
	s.AddTool(listTool, makeListRecentSessionsHandler(deps))

	transcriptTool := mcp.NewTool("get_transcript",
		mcp.WithDescription("Read the conversation of a Claude Code session, paged by message"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session UUID to retrieve")),
		mcp.WithNumber("offset",
			mcp.Description("Skip this many messages")),
		mcp.WithNumber("limit",
			mcp.Description("Max messages to return (default: 100)")),
		mcp.WithBoolean("include_tools",
			mcp.Description("Include tool calls and results")),
	)
	s.AddTool(transcriptTool, makeGetTranscriptHandler(deps))

	usageTool := mcp.NewTool("get_usage",
		mcp.WithDescription("Get current Claude rate limit utilization for the 5-hour and weekly windows"),
	)
	s.AddTool(usageTool, makeGetUsageHandler(deps))

	projectStatsTool := mcp.NewTool("get_project_stats",
		mcp.WithDescription("Get per-project cost, line and token metrics recorded by Claude Code, with token totals across all of a project's sessions"),
		mcp.WithString("project",
			mcp.Description("Filter by project path substring")),
	)
	s.AddTool(projectStatsTool, makeGetProjectStatsHandler(deps))

	globalStatsTool := mcp.NewTool("get_global_stats",
		mcp.WithDescription("Get overall Claude Code activity: daily messages, sessions, tool calls and tokens by model, model usage totals and activity by hour"),
		mcp.WithNumber("days",
			mcp.Description("Only return the last N days of daily activity (default: all)")),
	)
	s.AddTool(globalStatsTool, makeGetGlobalStatsHandler(deps))

	mcpServersTool := mcp.NewTool("list_mcp_servers",
		mcp.WithDescription("List the MCP servers Claude Code is configured with (user, local and project scope) and whether each is reachable"),
		mcp.WithBoolean("check",
			mcp.Description("Run health checks (default: true)")),
	)
	s.AddTool(mcpServersTool, makeListMCPServersHandler(deps))

	accountTool := mcp.NewTool("get_account",
		mcp.WithDescription("Get the Claude account Claude Code is signed in with"),
	)
	s.AddTool(accountTool, makeGetAccountHandler(deps))

	return s
}

// StartServer serves the tools over stdio until stdin closes
func StartServer(version string, deps Deps) error {
	return server.ServeStdio(NewServer(version, deps))
}

func decodeArgs(request mcp.CallToolRequest, v any) error {
	argsBytes, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(argsBytes, v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// refresh syncs the index and relists sessions. Failures only make results
// staler, so they are not fatal.
func refresh(ctx context.Context, deps Deps) {
	if deps.Sync != nil {
		_ = deps.Sync(ctx)
	}
	_ = deps.Catalog.Refresh(ctx)
}

func makeSearchSessionsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchSessionsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}

		refresh(ctx, deps)

		var matches []models.SearchMatch
		if merge.Searchable(args.Query) && deps.Searcher != nil {
			searcher, err := deps.Searcher()
			if err == nil {
				matches, err = searcher.SearchSessions(ctx, args.Query)
			}
			if err != nil {
				matches = nil
			}
		}
		view := merge.Build(deps.Catalog.Sessions(), args.Query, matches)

		filters := catalog.Filters{Project: args.Project}
		now := deps.now()
		if args.AfterDate != "" {
			filters.AfterDate, filters.HasAfter = catalog.ParseDate(nil, args.AfterDate, now)
		}
		if args.BeforeDate != "" {
			filters.BeforeDate, filters.HasBefore = catalog.ParseDate(nil, args.BeforeDate, now)
		}
		sessions := filters.Apply(view.Sessions)

		byID := make(map[string]models.SearchMatch, len(matches))
		for _, m := range matches {
			if _, ok := byID[m.Session.ID]; !ok {
				byID[m.Session.ID] = m
			}
		}

		results := []SessionMatch{}
		for _, s := range sessions {
			if len(results) >= limit {
				break
			}
			r := SessionMatch{
				SessionID: s.ID,
				Summary:   s.Summary,
				Project:   s.ProjectPath,
				UpdatedAt: s.LastTimestamp,
			}
			if count, ok := view.MatchCount(s.ID); ok {
				r.MatchCount = count
			}
			if m, ok := byID[s.ID]; ok {
				r.MatchedText = m.MatchedText
				r.EntryType = m.EntryType
			}
			results = append(results, r)
		}

		return jsonResult(map[string]any{"sessions": results})
	}
}

func makeListRecentSessionsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListRecentSessionsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}

		if err := deps.Catalog.Refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
		}

		coreSessions := catalog.Filters{Project: args.Project}.Apply(deps.Catalog.Sessions())
		if len(coreSessions) > limit {
			coreSessions = coreSessions[:limit]
		}

		sessions := []SessionSummary{}
		for _, cs := range coreSessions {
			sessions = append(sessions, SessionSummary{
				SessionID:    cs.ID,
				Summary:      cs.Summary,
				Project:      cs.ProjectPath,
				UpdatedAt:    cs.LastTimestamp,
				MessageCount: cs.MessageCount,
			})
		}

		return jsonResult(map[string]any{"sessions": sessions})
	}
}

func makeGetTranscriptHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetTranscriptArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.SessionID == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}

		if err := deps.Catalog.Refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
		}
		meta, ok := deps.Catalog.Find(args.SessionID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", args.SessionID)), nil
		}

		loader := transcript.NewLoader(deps.Reader, deps.ClaudeDir(), nil)
		loader.Load(ctx, meta.ID, meta.ProjectPath)
		state := loader.State()
		if state.Error != "" {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read session: %s", state.Error)), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = defaultTranscriptLimit
		}
		start := min(max(args.Offset, 0), len(state.Messages))
		end := min(start+limit, len(state.Messages))

		out := Transcript{
			SessionID: meta.ID,
			Project:   meta.ProjectPath,
			Total:     len(state.Messages),
			Offset:    start,
			Messages:  []TranscriptMessage{},
		}
		for _, msg := range state.Messages[start:end] {
			out.Messages = append(out.Messages, toTranscriptMessage(msg, args.IncludeTools))
		}

		return jsonResult(out)
	}
}

func toTranscriptMessage(msg transcript.Message, includeTools bool) TranscriptMessage {
	tm := TranscriptMessage{
		Role:      string(msg.Role),
		Text:      msg.Text(),
		Timestamp: msg.Timestamp,
	}
	if !includeTools {
		return tm
	}
	for _, b := range msg.Blocks {
		switch bl := b.(type) {
		case transcript.ToolUseBlock:
			tm.Tools = append(tm.Tools, Tool{Kind: bl.Kind().String(), Name: bl.Name, Content: bl.Input})
		case transcript.ToolResultBlock:
			tm.Tools = append(tm.Tools, Tool{Kind: bl.Kind().String(), Content: bl.Output})
		}
	}
	return tm
}

func makeGetUsageHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Connect != nil {
			if err := deps.Connect(ctx); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}

		if err := deps.Usage.Fetch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return mcp.NewToolResultError(fmt.Sprintf("failed to fetch usage: %v", err)), nil
		}
		state := deps.Usage.State()
		if state.Error != "" {
			return mcp.NewToolResultError(state.Error), nil
		}

		report := UsageReport{
			Windows: usage.Rows(state.Usage),
			Tooltip: usage.Tooltip(state.Usage),
		}
		if report.Windows == nil {
			report.Windows = []usage.Row{}
		}
		if !state.FetchedAt.IsZero() {
			report.FetchedAt = state.FetchedAt.Format(time.RFC3339)
		}
		if state.Usage != nil && state.Usage.ExtraUsage != nil && state.Usage.ExtraUsage.IsEnabled {
			report.ExtraUsed = usage.Dollars(state.Usage.ExtraUsage.UsedCredits)
			report.ExtraLimit = usage.Dollars(state.Usage.ExtraUsage.MonthlyLimit)
		}

		return jsonResult(report)
	}
}

func claudeJSON(deps Deps) (*claudejson.Reader, *mcp.CallToolResult) {
	if deps.ClaudeJSON == nil {
		return nil, mcp.NewToolResultError("Claude Code configuration is not available")
	}
	return deps.ClaudeJSON(), nil
}

func makeGetProjectStatsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetProjectStatsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		reader, errResult := claudeJSON(deps)
		if errResult != nil {
			return errResult, nil
		}

		projects, err := reader.ProjectMetrics(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read project stats: %v", err)), nil
		}
		out := []claudejson.ProjectMetrics{}
		for _, p := range projects {
			if args.Project == "" || strings.Contains(strings.ToLower(p.Path), strings.ToLower(args.Project)) {
				out = append(out, p)
			}
		}
		return jsonResult(map[string]any{"projects": out})
	}
}

func makeGetGlobalStatsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetGlobalStatsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		reader, errResult := claudeJSON(deps)
		if errResult != nil {
			return errResult, nil
		}

		stats, err := reader.GlobalStats(ctx, deps.now())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if args.Days > 0 {
			stats.DailyActivity = lastN(stats.DailyActivity, args.Days)
			stats.DailyModelTokens = lastN(stats.DailyModelTokens, args.Days)
		}
		return jsonResult(stats)
	}
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func makeListMCPServersHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListMCPServersArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		reader, errResult := claudeJSON(deps)
		if errResult != nil {
			return errResult, nil
		}

		servers, err := reader.MCPServers()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read MCP servers: %v", err)), nil
		}

		out := []claudejson.ServerStatus{}
		if args.Check != nil && !*args.Check {
			for _, s := range servers {
				out = append(out, claudejson.ServerStatus{ServerConfig: s, Status: claudejson.StatusUnknown})
			}
		} else {
			checker := deps.Checker
			if checker == nil {
				checker = claudejson.NewChecker()
			}
			out = append(out, checker.CheckAll(ctx, servers)...)
		}
		return jsonResult(map[string]any{"servers": out})
	}
}

func makeGetAccountHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reader, errResult := claudeJSON(deps)
		if errResult != nil {
			return errResult, nil
		}
		acct, err := reader.Account()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(acct)
	}
}
