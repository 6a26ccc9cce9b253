package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ccdash/internal/core/kv"
	"github.com/neilberkman/ccdash/internal/core/models"
)

type fakeFetcher struct {
	valid  map[string]bool
	tokens []string
}

func (f *fakeFetcher) FetchUsage(ctx context.Context, token string) (*models.UsageResponse, error) {
	f.tokens = append(f.tokens, token)
	if !f.valid[token] {
		return nil, errors.New("401 Unauthorized")
	}
	return &models.UsageResponse{}, nil
}

type fakeDetector struct {
	token  string
	distro string
}

func (f *fakeDetector) DetectOAuthToken(ctx context.Context, distro string) (string, error) {
	f.distro = distro
	if f.token == "" {
		return "", errors.New("not found")
	}
	return f.token, nil
}

func newTestStore(valid ...string) (*Store, *kv.Store, *fakeFetcher, *fakeDetector) {
	backend := kv.New(kv.NewMemory())
	fetcher := &fakeFetcher{valid: map[string]bool{}}
	for _, v := range valid {
		fetcher.valid[v] = true
	}
	detector := &fakeDetector{}
	return NewStore(backend, fetcher, detector), backend, fetcher, detector
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	s, backend, _, _ := newTestStore("good")

	err := s.Connect(ctx, "org-1", "bad")
	require.Error(t, err)
	assert.False(t, s.Current().IsConnected())
	assert.Contains(t, s.Error(), "401")

	require.NoError(t, s.Connect(ctx, "org-1", "good"))
	assert.True(t, s.Current().IsConnected())
	assert.Empty(t, s.Error())

	var tok string
	found, err := backend.Get(ctx, KeyToken, &tok)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "good", tok)
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, backend, fetcher, detector := newTestStore("tok")

	require.NoError(t, s.Connect(ctx, "org", "tok"))
	require.NoError(t, s.SetClaudeDir(ctx, "/home/u/.claude"))
	require.NoError(t, s.SetWSL(ctx, true, "Ubuntu"))

	reloaded := NewStore(backend, fetcher, detector)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, Credential{
		OrgID:     "org",
		Token:     "tok",
		ClaudeDir: "/home/u/.claude",
		UseWSL:    true,
		WSLDistro: "Ubuntu",
	}, reloaded.Current())
}

func TestLoadEmpty(t *testing.T) {
	s, _, _, _ := newTestStore()
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, Credential{}, s.Current())
	assert.False(t, s.Current().IsConnected())
}

func TestAutoConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("detected and valid", func(t *testing.T) {
		s, _, _, detector := newTestStore("detected")
		detector.token = "detected"
		require.NoError(t, s.SetWSL(ctx, true, "Debian"))

		assert.True(t, s.AutoConnect(ctx))
		assert.Equal(t, "detected", s.Current().Token)
		assert.Equal(t, "Debian", detector.distro)
	})

	t.Run("detected but rejected", func(t *testing.T) {
		s, _, _, detector := newTestStore()
		detector.token = "stale"

		assert.False(t, s.AutoConnect(ctx))
		assert.False(t, s.Current().IsConnected())
	})

	t.Run("nothing detected", func(t *testing.T) {
		s, _, fetcher, _ := newTestStore()

		assert.False(t, s.AutoConnect(ctx))
		assert.Empty(t, fetcher.tokens)
	})
}

func TestDemoteKeepsDirectory(t *testing.T) {
	ctx := context.Background()
	s, backend, fetcher, detector := newTestStore("tok")

	require.NoError(t, s.Connect(ctx, "org", "tok"))
	require.NoError(t, s.SetClaudeDir(ctx, "/c"))
	require.NoError(t, s.SetWSL(ctx, true, "Ubuntu"))

	require.NoError(t, s.Demote(ctx))
	assert.Equal(t, Credential{ClaudeDir: "/c", UseWSL: true, WSLDistro: "Ubuntu"}, s.Current())

	reloaded := NewStore(backend, fetcher, detector)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, s.Current(), reloaded.Current())
}

func TestDisconnectClearsEverything(t *testing.T) {
	ctx := context.Background()
	s, backend, fetcher, detector := newTestStore("tok")

	require.NoError(t, s.Connect(ctx, "org", "tok"))
	require.NoError(t, s.SetClaudeDir(ctx, "/c"))

	require.NoError(t, s.Disconnect(ctx))
	assert.Equal(t, Credential{}, s.Current())

	reloaded := NewStore(backend, fetcher, detector)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, Credential{}, reloaded.Current())
}

func TestTransport(t *testing.T) {
	c := Credential{UseWSL: true, WSLDistro: "Ubuntu"}
	tr := c.Transport()
	assert.True(t, tr.UseWSL)
	assert.Equal(t, "Ubuntu", tr.Distro)
}
