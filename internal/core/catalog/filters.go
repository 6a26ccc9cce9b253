package catalog

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/samber/lo"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// Filters are the structured parts of a history query
type Filters struct {
	Query      string // free text left after removing filters
	Project    string
	AfterDate  time.Time
	BeforeDate time.Time
	HasAfter   bool
	HasBefore  bool
}

// ParseQuery extracts filters from a query string. Supported forms:
//   - project:<path>
//   - date:yesterday, date:last-week, date:2024-11-01 (same as after:)
//   - after:<date>, before:<date>
func ParseQuery(query string, now time.Time) Filters {
	var filters Filters

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	var queryParts []string
	for _, token := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(token, "project:"):
			filters.Project = strings.TrimPrefix(token, "project:")
		case strings.HasPrefix(token, "date:"), strings.HasPrefix(token, "after:"):
			_, value, _ := strings.Cut(token, ":")
			if t, ok := ParseDate(w, value, now); ok {
				filters.AfterDate = t
				filters.HasAfter = true
			}
		case strings.HasPrefix(token, "before:"):
			if t, ok := ParseDate(w, strings.TrimPrefix(token, "before:"), now); ok {
				filters.BeforeDate = t
				filters.HasBefore = true
			}
		default:
			queryParts = append(queryParts, token)
		}
	}

	filters.Query = strings.Join(queryParts, " ")
	return filters
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// ParseDate parses an absolute date or a natural language one such as
// "yesterday" or "last-week". A nil parser uses English rules.
func ParseDate(w *when.Parser, value string, now time.Time) (time.Time, bool) {
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, value, now.Location()); err == nil {
			return t, true
		}
	}

	if w == nil {
		w = when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)
	}
	result, err := w.Parse(strings.ReplaceAll(value, "-", " "), now)
	if err == nil && result != nil {
		return result.Time, true
	}
	return time.Time{}, false
}

// IsEmpty reports whether no structured filter is set
func (f Filters) IsEmpty() bool {
	return f.Project == "" && !f.HasAfter && !f.HasBefore
}

// Apply keeps sessions that satisfy the structured filters. Query is not
// applied here; it goes through the merge view.
func (f Filters) Apply(sessions []models.SessionMeta) []models.SessionMeta {
	if f.IsEmpty() {
		return sessions
	}
	project := strings.ToLower(f.Project)
	return lo.Filter(sessions, func(s models.SessionMeta, _ int) bool {
		if project != "" && !strings.Contains(strings.ToLower(s.ProjectPath), project) {
			return false
		}
		at := s.LastActivity()
		if f.HasAfter && at.Before(f.AfterDate) {
			return false
		}
		if f.HasBefore && !at.Before(f.BeforeDate) {
			return false
		}
		return true
	})
}
