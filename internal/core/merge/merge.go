// Package merge combines the locally filtered session catalog with content
// search hits into a single ordered list.
package merge

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// MinQueryLength is the shortest filter that takes content search results
// into account
const MinQueryLength = 2

// View is the merged, deduplicated session list. MatchCountByID only holds
// sessions that have a content hit; a missing entry means no badge.
type View struct {
	Sessions       []models.SessionMeta
	MatchCountByID map[string]int
}

// MatchCount returns the content hit count for a session and whether it has one
func (v View) MatchCount(id string) (int, bool) {
	n, ok := v.MatchCountByID[id]
	return n, ok
}

// Searchable reports whether filter is long enough to run a content search
func Searchable(filter string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(filter)) >= MinQueryLength
}

// LocalFilter keeps sessions whose project path or summary contains filter,
// case-insensitively, in catalog order. An empty filter keeps everything.
func LocalFilter(catalog []models.SessionMeta, filter string) []models.SessionMeta {
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return append([]models.SessionMeta(nil), catalog...)
	}
	return lo.Filter(catalog, func(s models.SessionMeta, _ int) bool {
		return strings.Contains(strings.ToLower(s.ProjectPath), needle) ||
			strings.Contains(strings.ToLower(s.Summary), needle)
	})
}

// Build merges the local filter result with search matches. Local matches
// come first in catalog order, followed by search-only sessions in backend
// order. When filter is too short, matches are ignored. Build never fails;
// a failed search is represented by passing nil matches.
func Build(catalog []models.SessionMeta, filter string, matches []models.SearchMatch) View {
	local := LocalFilter(catalog, filter)

	view := View{
		Sessions:       local,
		MatchCountByID: make(map[string]int),
	}
	if !Searchable(filter) {
		return view
	}

	seen := lo.SliceToMap(local, func(s models.SessionMeta) (string, struct{}) {
		return s.ID, struct{}{}
	})

	for _, m := range matches {
		if m.MatchCount > 0 {
			if _, ok := view.MatchCountByID[m.Session.ID]; !ok {
				view.MatchCountByID[m.Session.ID] = m.MatchCount
			}
		}
		if _, ok := seen[m.Session.ID]; ok {
			continue
		}
		seen[m.Session.ID] = struct{}{}
		view.Sessions = append(view.Sessions, m.Session)
	}

	return view
}
