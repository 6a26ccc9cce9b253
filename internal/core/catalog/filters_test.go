package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     string
		wantQuery string
		project   string
		after     string
		before    string
	}{
		{"plain", "auth bug", "auth bug", "", "", ""},
		{"project", "project:api retry", "retry", "api", "", ""},
		{"absolute after", "after:2025-03-01 deploy", "deploy", "", "2025-03-01", ""},
		{"date alias", "date:2025-02-15", "", "", "2025-02-15", ""},
		{"before slash", "before:2025/03/05 x", "x", "", "", "2025-03-05"},
		{"yesterday", "date:yesterday", "", "", "2025-03-09", ""},
		{"unparseable date dropped", "after:zzz foo", "foo", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseQuery(tt.query, now)
			assert.Equal(t, tt.wantQuery, f.Query)
			assert.Equal(t, tt.project, f.Project)
			assert.Equal(t, tt.after != "", f.HasAfter)
			assert.Equal(t, tt.before != "", f.HasBefore)
			if tt.after != "" {
				assert.Equal(t, tt.after, f.AfterDate.Format("2006-01-02"))
			}
			if tt.before != "" {
				assert.Equal(t, tt.before, f.BeforeDate.Format("2006-01-02"))
			}
		})
	}
}

func TestFiltersApply(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		query string
		want  []string
	}{
		{"anything", []string{"a", "b", "c"}},
		{"project:API", []string{"a", "c"}},
		{"after:2025-03-02", []string{"a", "b"}},
		{"before:2025-03-02", []string{"c"}},
		{"project:api after:2025-03-01 before:2025-03-04", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ParseQuery(tt.query, now).Apply(sample)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}
