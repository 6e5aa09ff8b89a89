package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/sheets/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func provider(t *testing.T, calls *int32, status *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if code := atomic.LoadInt32(status); code != http.StatusOK {
			w.WriteHeader(int(code))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"oficial":{"value_avg":995,"value_sell":1000.5,"value_buy":990},"blue":{"value_sell":1200},"last_update":"2024-05-01T10:00:00-03:00"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, url string, c *clock) (*Service, *memory.Store) {
	store := memory.New(nil, nil)
	svc := New(store, Options{URL: url, CardTaxPercent: 60, CacheTTL: time.Hour, Now: c.now})
	return svc, store
}

func TestCurrentFetchesAndStores(t *testing.T) {
	var calls int32
	status := int32(http.StatusOK)
	srv := provider(t, &calls, &status)
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc, store := newService(t, srv.URL, c)
	ctx := context.Background()

	q, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.True(t, q.Official.Equal(decimal.RequireFromString("1000.5")))
	assert.True(t, q.Card.Equal(decimal.RequireFromString("1600.8")), "card = %s", q.Card)
	assert.True(t, q.Blue.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, "2024-05-01", q.Date.String())

	stored, err := store.LatestRate(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Official.Equal(q.Official))

	_, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second call should hit the cache")

	c.t = c.t.Add(2 * time.Hour)
	_, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "expired entry should refetch")
}

func TestCurrentFallsBackToStoredQuote(t *testing.T) {
	var calls int32
	status := int32(http.StatusBadGateway)
	srv := provider(t, &calls, &status)
	c := &clock{t: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
	svc, store := newService(t, srv.URL, c)
	ctx := context.Background()

	_, err := svc.Current(ctx)
	require.ErrorIs(t, err, ErrNoRate)

	old := core.RateQuote{Date: core.NewDate(2024, 4, 30), Official: decimal.NewFromInt(950), Card: decimal.NewFromInt(1520), Source: source}
	require.NoError(t, store.SaveRate(ctx, old))

	q, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.True(t, q.Official.Equal(old.Official))
	assert.Equal(t, "2024-04-30", q.Date.String())
}

func TestRefreshFailsWithoutFallback(t *testing.T) {
	var calls int32
	status := int32(http.StatusInternalServerError)
	srv := provider(t, &calls, &status)
	svc, _ := newService(t, srv.URL, &clock{t: time.Now()})

	_, err := svc.Refresh(context.Background())
	assert.Error(t, err)
}

func TestCurrentSharesConcurrentFetches(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Write([]byte(`{"oficial":{"value_sell":1000},"blue":{"value_sell":1100}}`))
	}))
	defer srv.Close()
	svc, _ := newService(t, srv.URL, &clock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Current(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestHistoryWindow(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC)}
	svc, store := newService(t, "http://unused.invalid", c)
	ctx := context.Background()
	for _, d := range []core.Date{core.NewDate(2024, 4, 1), core.NewDate(2024, 5, 2), core.NewDate(2024, 5, 31)} {
		require.NoError(t, store.SaveRate(ctx, core.RateQuote{Date: d, Official: decimal.NewFromInt(1)}))
	}

	got, err := svc.History(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-02", got[0].Date.String())
}

func TestMalformedProviderResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"blue":{"value_sell":1100}}`))
	}))
	defer srv.Close()
	svc, _ := newService(t, srv.URL, &clock{t: time.Now()})

	_, err := svc.Refresh(context.Background())
	assert.ErrorContains(t, err, "no official rate")
}
