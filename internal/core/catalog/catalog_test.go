package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

type fakeLister struct {
	sessions []models.SessionMeta
	err      error
	dirs     []string
}

func (f *fakeLister) ListSessions(ctx context.Context, dir string) ([]models.SessionMeta, error) {
	f.dirs = append(f.dirs, dir)
	return f.sessions, f.err
}

var sample = []models.SessionMeta{
	{ID: "a", ProjectPath: "/work/api", ProjectDisplay: "work/api", Summary: "Fixed auth middleware", LastTimestamp: "2025-03-03T10:00:00Z", MessageCount: 10},
	{ID: "b", ProjectPath: "/work/web", ProjectDisplay: "work/web", Summary: "Styled the navbar", LastTimestamp: "2025-03-02T10:00:00Z", MessageCount: 4},
	{ID: "c", ProjectPath: "/work/api", ProjectDisplay: "work/api", Summary: "Added pagination", LastTimestamp: "2025-02-01T10:00:00Z", MessageCount: 6},
}

func TestRefresh(t *testing.T) {
	lister := &fakeLister{sessions: sample}
	c := New(lister, func() string { return "/home/u/.claude" })

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, sample, c.Sessions())
	assert.Empty(t, c.Error())
	assert.Equal(t, []string{"/home/u/.claude"}, lister.dirs)
	assert.False(t, c.LoadedAt().IsZero())
}

func TestRefresh_NoDirectoryIsNoop(t *testing.T) {
	lister := &fakeLister{sessions: sample}
	c := New(lister, func() string { return "" })

	require.NoError(t, c.Refresh(context.Background()))
	assert.Empty(t, c.Sessions())
	assert.Empty(t, lister.dirs)
}

func TestRefresh_FailureKeepsPreviousList(t *testing.T) {
	lister := &fakeLister{sessions: sample}
	c := New(lister, func() string { return "/c" })
	require.NoError(t, c.Refresh(context.Background()))

	lister.sessions, lister.err = nil, errors.New("permission denied")
	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, "permission denied", c.Error())
	assert.Len(t, c.Sessions(), 3)

	lister.sessions, lister.err = sample[:1], nil
	require.NoError(t, c.Refresh(context.Background()))
	assert.Empty(t, c.Error())
	assert.Len(t, c.Sessions(), 1)
}

func TestSessionsIsACopy(t *testing.T) {
	c := New(&fakeLister{sessions: sample}, func() string { return "/c" })
	require.NoError(t, c.Refresh(context.Background()))

	got := c.Sessions()
	got[0].Summary = "changed"
	assert.Equal(t, "Fixed auth middleware", c.Sessions()[0].Summary)
}

func TestFilterFindSince(t *testing.T) {
	c := New(&fakeLister{sessions: sample}, func() string { return "/c" })
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, []string{"a"}, ids(c.Filter("AUTH")))
	assert.Equal(t, []string{"a", "c"}, ids(c.Filter("work/api")))

	s, ok := c.Find("b")
	require.True(t, ok)
	assert.Equal(t, "/work/web", s.ProjectPath)
	_, ok = c.Find("zzz")
	assert.False(t, ok)

	since := c.Since(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"a", "b"}, ids(since))
}

func TestFind_PrefersMostRecent(t *testing.T) {
	dup := []models.SessionMeta{
		{ID: "x", ProjectPath: "/old", LastTimestamp: "2025-01-01T00:00:00Z"},
		{ID: "x", ProjectPath: "/new", LastTimestamp: "2025-02-01T00:00:00Z"},
	}
	c := New(&fakeLister{sessions: dup}, func() string { return "/c" })
	require.NoError(t, c.Refresh(context.Background()))

	s, ok := c.Find("x")
	require.True(t, ok)
	assert.Equal(t, "/new", s.ProjectPath)
}

func TestProjects(t *testing.T) {
	c := New(&fakeLister{sessions: sample}, func() string { return "/c" })
	require.NoError(t, c.Refresh(context.Background()))

	projects := c.Projects()
	require.Len(t, projects, 2)
	assert.Equal(t, "/work/api", projects[0].Path)
	assert.Equal(t, 2, projects[0].Sessions)
	assert.Equal(t, 16, projects[0].Messages)
	assert.Equal(t, "work/api", projects[0].Display)
	assert.Equal(t, "/work/web", projects[1].Path)
}

func TestRefresh_FromSessionStore(t *testing.T) {
	c := New(ccsessions.NewStore(ccsessions.Transport{}), func() string {
		return "../../../pkg/ccsessions/testdata/claude"
	})
	require.NoError(t, c.Refresh(context.Background()))

	sessions := c.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "def-456", sessions[0].ID)
	assert.Equal(t, "abc-123", sessions[1].ID)
	assert.Equal(t, "/Users/neil/xuku/invoice", sessions[1].ProjectPath)
}

func ids(sessions []models.SessionMeta) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
