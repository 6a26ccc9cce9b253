package merge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neilberkman/ccdash/internal/core/models"
)

func session(id, path, summary string) models.SessionMeta {
	return models.SessionMeta{ID: id, ProjectPath: path, Summary: summary}
}

func match(s models.SessionMeta, n int) models.SearchMatch {
	return models.SearchMatch{Session: s, MatchCount: n, EntryType: "user"}
}

func ids(sessions []models.SessionMeta) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

var catalog = []models.SessionMeta{
	session("a", "/work/react-app", "Fix login form"),
	session("b", "/work/api", "Add React hooks guide"),
	session("c", "/work/cli", "Release notes"),
	session("d", "/home/notes", "Groceries"),
}

func TestLocalFilter(t *testing.T) {
	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"a", "b", "c", "d"}},
		{"REACT", []string{"a", "b"}},
		{"  cli ", []string{"c"}},
		{"nothing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(LocalFilter(catalog, tt.filter)))
		})
	}
}

func TestBuild_LocalFirstThenSearchOnly(t *testing.T) {
	matches := []models.SearchMatch{
		match(catalog[3], 7),
		match(catalog[1], 2),
		match(catalog[2], 1),
	}

	view := Build(catalog, "react", matches)

	assert.Equal(t, []string{"a", "b", "d", "c"}, ids(view.Sessions))
	assert.Equal(t, map[string]int{"d": 7, "b": 2, "c": 1}, view.MatchCountByID)

	_, ok := view.MatchCount("a")
	assert.False(t, ok, "local-only session must have no badge")
}

func TestBuild_ShortFilterIgnoresMatches(t *testing.T) {
	view := Build(catalog, "r", []models.SearchMatch{match(catalog[3], 4)})

	assert.Equal(t, ids(LocalFilter(catalog, "r")), ids(view.Sessions))
	assert.Empty(t, view.MatchCountByID)
}

func TestBuild_SearchFailureDegradesToLocal(t *testing.T) {
	view := Build(catalog, "react", nil)

	assert.Equal(t, []string{"a", "b"}, ids(view.Sessions))
	assert.Empty(t, view.MatchCountByID)
}

func TestBuild_Deterministic(t *testing.T) {
	matches := []models.SearchMatch{match(catalog[2], 3), match(catalog[0], 1)}

	first := Build(catalog, "work", matches)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Build(catalog, "work", matches))
	}
}

func TestBuild_NoDuplicates(t *testing.T) {
	// overlapping and repeated matches
	matches := []models.SearchMatch{
		match(catalog[0], 1),
		match(catalog[3], 2),
		match(catalog[3], 5),
		match(catalog[1], 1),
	}

	for _, filter := range []string{"", "re", "work", "zz", "notes"} {
		t.Run(fmt.Sprintf("filter=%q", filter), func(t *testing.T) {
			view := Build(catalog, filter, matches)
			seen := make(map[string]bool)
			for _, s := range view.Sessions {
				assert.False(t, seen[s.ID], "duplicate %s", s.ID)
				seen[s.ID] = true
			}
		})
	}
}

func TestSearchable(t *testing.T) {
	assert.False(t, Searchable(""))
	assert.False(t, Searchable(" a "))
	assert.False(t, Searchable("é"))
	assert.True(t, Searchable("ab"))
	assert.True(t, Searchable("日本"))
}
