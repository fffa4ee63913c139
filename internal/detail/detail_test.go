package detail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

const payload = `{
	"details": {"inventeur": "Breccia", "date_decouverte": 1905, "num_tkaczow": 12},
	"vestiges": [{"caracterisation": "Mosaïque", "periode": "Romaine (Ier s.)"}],
	"bibliographies": [{"auteur": "Tkaczow", "nom_document": "Topography", "annee": 1993, "pages": null}]
}`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/api/sitesFouilles/42/details":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(payload))
		case "/api/sitesFouilles/7/details":
			_, _ = w.Write([]byte(`{"details": [`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetchDecodesMixedScalars(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(srv.URL+"/api/", time.Second, logging.Noop())

	got, err := c.Fetch(context.Background(), 42)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Details.Inventeur != "Breccia" || got.Details.DateDecouverte != "1905" || got.Details.NumTkaczow != "12" {
		t.Fatalf("details = %+v", got.Details)
	}
	if len(got.Vestiges) != 1 || got.Vestiges[0].Periode != "Romaine (Ier s.)" {
		t.Fatalf("vestiges = %+v", got.Vestiges)
	}
	if b := got.Bibliographies[0]; b.Annee != "1993" || b.Pages != "" {
		t.Fatalf("bibliography = %+v", b)
	}
	if c.URL(42) != srv.URL+"/api/sitesFouilles/42/details" {
		t.Fatalf("URL = %s", c.URL(42))
	}
}

func TestClientNon2xxIsUnexpectedStatus(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewDetailCollector(reg)
	if err != nil {
		t.Fatalf("NewDetailCollector: %v", err)
	}
	c := NewClient(srv.URL+"/api", time.Second, nil, WithMetrics(metrics))

	_, err = c.Fetch(context.Background(), 404)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
	if n := testutil.CollectAndCount(metrics.FetchDuration); n != 1 {
		t.Fatalf("fetch duration series = %d, want 1", n)
	}
}

func TestClientRejectsMalformedPayload(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(srv.URL+"/api", time.Second, nil)
	if _, err := c.Fetch(context.Background(), 7); err == nil || errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestClientUsesSuppliedHTTPClient(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(srv.URL+"/api", time.Second, nil, WithHTTPClient(srv.Client()))

	if _, err := c.Fetch(context.Background(), 42); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
}

func TestClientPropagatesRequestID(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"details":{}}`))
	}))
	defer srv.Close()

	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	if _, err := NewClient(srv.URL, time.Second, nil).Fetch(ctx, 1); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got, _ := seen.Load().(string); got != "req-1" {
		t.Fatalf("X-Request-ID = %q, want req-1", got)
	}
}

func TestCachedServesRepeatFetchesFromCache(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewDetailCollector(reg)
	if err != nil {
		t.Fatalf("NewDetailCollector: %v", err)
	}
	f := NewCached(NewClient(srv.URL+"/api", time.Second, nil), NewMemoryCache(), nil, metrics)

	for i := 0; i < 3; i++ {
		got, err := f.Fetch(context.Background(), 42)
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i, err)
		}
		if got.Details.Inventeur != "Breccia" {
			t.Fatalf("Fetch #%d details = %+v", i, got.Details)
		}
	}
	if hits := atomic.LoadInt32(&hits); hits != 1 {
		t.Fatalf("endpoint hits = %d, want 1", hits)
	}
	if v := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")); v != 2 {
		t.Fatalf("cache hits = %v, want 2", v)
	}
}

func TestCachedFallsThroughWhenRedisIsDown(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewDetailCollector(reg)
	if err != nil {
		t.Fatalf("NewDetailCollector: %v", err)
	}
	f := NewCached(NewClient(srv.URL+"/api", time.Second, nil), NewRedisCache(rdb, 0), nil, metrics)

	got, err := f.Fetch(context.Background(), 42)
	if err != nil {
		t.Fatalf("Fetch with unreachable redis: %v", err)
	}
	if got.Details.Inventeur != "Breccia" {
		t.Fatalf("details = %+v", got.Details)
	}
	if v := testutil.ToFloat64(metrics.CacheErrors); v != 2 {
		t.Fatalf("cache errors = %v, want 2 (read and write)", v)
	}
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	cache := NewMemoryCache()
	f := NewCached(NewClient(srv.URL+"/api", time.Second, nil), cache, nil, nil)

	if _, err := f.Fetch(context.Background(), 404); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok, _ := cache.Get(context.Background(), model.FeatureID(404)); ok {
		t.Fatalf("failed fetch was cached")
	}
}
