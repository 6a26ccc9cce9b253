package usage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ccdash/internal/core/auth"
	"github.com/neilberkman/ccdash/internal/core/connection"
	"github.com/neilberkman/ccdash/internal/core/kv"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/usageapi"
)

func ptr[T any](v T) *T { return &v }

func sampleUsage(five float64) *models.UsageResponse {
	return &models.UsageResponse{
		FiveHour:       &models.UsageWindow{Utilization: five, ResetsAt: ptr("2025-06-01T15:00:00Z")},
		SevenDay:       &models.UsageWindow{Utilization: 40.4},
		SevenDaySonnet: &models.UsageWindow{Utilization: 12, ResetsAt: ptr("2025-06-05T00:00:00Z")},
		SevenDayOpus:   &models.UsageWindow{Utilization: 0},
		ExtraUsage: &models.ExtraUsage{
			IsEnabled:    true,
			MonthlyLimit: ptr(50.0),
			UsedCredits:  ptr(12.5),
			Utilization:  ptr(25.0),
		},
	}
}

type staticCreds struct{ cred connection.Credential }

func (s *staticCreds) Current() connection.Credential { return s.cred }

type scriptedFetcher struct {
	results []result
	tokens  []string
}

type result struct {
	usage *models.UsageResponse
	err   error
}

func (f *scriptedFetcher) FetchUsage(ctx context.Context, token string) (*models.UsageResponse, error) {
	f.tokens = append(f.tokens, token)
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.usage, r.err
}

type fakeRecovery struct {
	usage *models.UsageResponse
	err   error
	calls int
}

func (f *fakeRecovery) Recover(ctx context.Context) (*models.UsageResponse, error) {
	f.calls++
	return f.usage, f.err
}

type notification struct {
	window models.WindowKey
	value  float64
	label  string
}

type recordingNotifier struct{ calls []notification }

func (r *recordingNotifier) CheckAndNotify(ctx context.Context, w models.WindowKey, v float64, label string) int {
	r.calls = append(r.calls, notification{w, v, label})
	return 0
}

type fixture struct {
	agg      *Aggregator
	fetcher  *scriptedFetcher
	recovery *fakeRecovery
	notifier *recordingNotifier
	cache    *kv.Store
	creds    *staticCreds
}

func setup(results ...result) *fixture {
	f := &fixture{
		fetcher:  &scriptedFetcher{results: results},
		recovery: &fakeRecovery{},
		notifier: &recordingNotifier{},
		cache:    kv.New(kv.NewMemory()),
		creds:    &staticCreds{cred: connection.Credential{Token: "tok"}},
	}
	f.agg = NewAggregator(f.creds, f.fetcher, f.recovery, f.notifier, f.cache).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.agg.now = func() time.Time { return time.UnixMilli(1717250000123) }
	return f
}

func TestFetch_NoTokenIsNoop(t *testing.T) {
	f := setup(result{usage: sampleUsage(10)})
	f.creds.cred.Token = ""

	require.NoError(t, f.agg.Fetch(context.Background()))
	assert.Empty(t, f.fetcher.tokens)
	assert.Equal(t, State{}, f.agg.State())
}

func TestFetch_Success(t *testing.T) {
	f := setup(result{usage: sampleUsage(55)})
	ctx := context.Background()

	var published []State
	f.agg.OnChange(func(s State) { published = append(published, s) })

	require.NoError(t, f.agg.Fetch(ctx))

	st := f.agg.State()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.Equal(t, 55.0, st.Usage.FiveHour.Utilization)
	assert.Equal(t, int64(1717250000123), st.FetchedAt.UnixMilli())
	require.Len(t, published, 2)
	assert.True(t, published[0].Loading)

	snap, found, err := ReadCache(ctx, f.cache)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1717250000123), snap.CachedAt)

	assert.Equal(t, []notification{
		{models.WindowFiveHour, 55, "Session (5h)"},
		{models.WindowSevenDay, 40.4, "Weekly (7d)"},
		{models.WindowSonnetWeekly, 12, "Weekly Sonnet"},
		{models.WindowOpusWeekly, 0, "Weekly Opus"},
		{models.WindowExtraUsage, 25, "Extra usage"},
	}, f.notifier.calls)
}

func TestFetch_OnlyPresentWindowsNotify(t *testing.T) {
	f := setup(result{usage: &models.UsageResponse{
		FiveHour:   &models.UsageWindow{Utilization: 1},
		SevenDay:   &models.UsageWindow{Utilization: 2},
		ExtraUsage: &models.ExtraUsage{IsEnabled: false},
	}})

	require.NoError(t, f.agg.Fetch(context.Background()))
	require.Len(t, f.notifier.calls, 2)
	assert.Equal(t, models.WindowSevenDay, f.notifier.calls[1].window)
}

func TestFetch_TransientErrorKeepsSnapshot(t *testing.T) {
	f := setup(
		result{usage: sampleUsage(30)},
		result{err: errors.New("dial tcp: connection refused")},
	)
	ctx := context.Background()

	require.NoError(t, f.agg.Fetch(ctx))
	err := f.agg.Fetch(ctx)
	require.Error(t, err)

	st := f.agg.State()
	assert.Equal(t, "dial tcp: connection refused", st.Error)
	require.NotNil(t, st.Usage)
	assert.Equal(t, 30.0, st.Usage.FiveHour.Utilization)
	assert.Zero(t, f.recovery.calls)
}

func TestFetch_AuthErrorRecovered(t *testing.T) {
	f := setup(result{err: &usageapi.AuthError{StatusCode: 401, Err: errors.New("401")}})
	f.recovery.usage = sampleUsage(77)

	require.NoError(t, f.agg.Fetch(context.Background()))
	assert.Equal(t, 1, f.recovery.calls)

	st := f.agg.State()
	assert.Empty(t, st.Error)
	assert.Equal(t, 77.0, st.Usage.FiveHour.Utilization)
	assert.Len(t, f.notifier.calls, 5)
}

func TestFetch_ReauthRequiredClearsEverything(t *testing.T) {
	f := setup(
		result{usage: sampleUsage(30)},
		result{err: errors.New(`{"error":{"type":"authentication_error"}}`)},
	)
	f.recovery.err = auth.ErrReauthRequired
	ctx := context.Background()

	require.NoError(t, f.agg.Fetch(ctx))
	_, changed := f.agg.TrayUpdate()
	require.True(t, changed)

	err := f.agg.Fetch(ctx)
	require.ErrorIs(t, err, auth.ErrReauthRequired)

	st := f.agg.State()
	assert.Nil(t, st.Usage)
	assert.Contains(t, st.Error, "run `claude`")

	_, found, err := ReadCache(ctx, f.cache)
	require.NoError(t, err)
	assert.False(t, found)

	tooltip, _ := f.agg.TrayUpdate()
	assert.Equal(t, IdleTooltip, tooltip)
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.New(kv.NewMemory())
	u := sampleUsage(63.2)
	at := time.UnixMilli(1717250000999)

	require.NoError(t, store.Set(ctx, CacheKey, NewCacheSnapshot(u, at)))

	snap, found, err := ReadCache(ctx, store)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, u, snap.Usage())
	assert.True(t, at.Equal(snap.CachedTime()))
}

func TestTooltip(t *testing.T) {
	tests := []struct {
		name  string
		usage *models.UsageResponse
		want  string
	}{
		{"nil", nil, IdleTooltip},
		{"all windows", sampleUsage(79.6), "ccdash - 5h: 80% | 7d: 40% | Sonnet: 12% | Extra: 25%"},
		{"base only", &models.UsageResponse{}, "ccdash - 5h: 0% | 7d: 0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tooltip(tt.usage))
		})
	}
}

func TestTrayUpdateOnlyOnChange(t *testing.T) {
	f := setup(
		result{usage: sampleUsage(50.2)},
		result{usage: sampleUsage(49.8)},
		result{usage: sampleUsage(52)},
	)
	ctx := context.Background()

	require.NoError(t, f.agg.Fetch(ctx))
	tip, changed := f.agg.TrayUpdate()
	assert.True(t, changed)
	assert.Contains(t, tip, "5h: 50%")

	require.NoError(t, f.agg.Fetch(ctx))
	_, changed = f.agg.TrayUpdate()
	assert.False(t, changed)

	require.NoError(t, f.agg.Fetch(ctx))
	tip, changed = f.agg.TrayUpdate()
	assert.True(t, changed)
	assert.Contains(t, tip, "5h: 52%")
}

func TestClear(t *testing.T) {
	f := setup(result{usage: sampleUsage(10)})
	ctx := context.Background()

	require.NoError(t, f.agg.Fetch(ctx))
	f.agg.Clear(ctx)

	assert.Equal(t, State{}, f.agg.State())
	_, found, err := ReadCache(ctx, f.cache)
	require.NoError(t, err)
	assert.False(t, found)
}
