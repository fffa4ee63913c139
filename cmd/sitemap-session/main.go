package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/config"
	"github.com/signalsfoundry/sites-fouilles-map/internal/detail"
	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/filters"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine/memory"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/internal/session"
	"github.com/signalsfoundry/sites-fouilles-map/model"
	"github.com/signalsfoundry/sites-fouilles-map/timectrl"
)

// alexandria is where the map opens when no deep link moves it.
var alexandria = model.Coordinate{Lng: 29.9187, Lat: 31.2001}

// Options are the command-line settings layered over config.Config.
type Options struct {
	DataPath    string
	StartURL    string
	MetricsAddr string
	EnvFile     string
	Zoom        float64
}

func main() {
	var opts Options
	flag.StringVar(&opts.DataPath, "data", "data/sites.geojson", "GeoJSON FeatureCollection of excavation sites")
	flag.StringVar(&opts.StartURL, "url", "https://sites.example/carte", "initial page URL, may carry ?point=<id>")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "HTTP address for /metrics and /debug/session (overrides SITEMAP_METRICS_ADDR)")
	flag.StringVar(&opts.EnvFile, "env", ".env", "optional .env file")
	flag.Float64Var(&opts.Zoom, "zoom", 13, "initial zoom")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}

	if err := run(ctx, cfg, opts, log, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "session exited", logging.Err(err))
		os.Exit(1)
	}
}

// run hosts one session until ctx is cancelled or in reaches EOF.
func run(ctx context.Context, cfg config.Config, opts Options, log logging.Logger, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(os.Getenv), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSessionCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	detailMetrics, err := observability.NewDetailCollector(nil)
	if err != nil {
		return fmt.Errorf("init detail metrics: %w", err)
	}

	frames := timectrl.NewTimeController(time.Now().UTC(), cfg.FrameInterval, timectrl.RealTime)
	sched := eventloop.NewScheduler(frames)
	loop := eventloop.NewLoop(log)
	frames.AddListener(func(time.Time) { loop.Post(sched.RunDue) })

	engine := memory.New(sched, memory.Options{Center: alexandria, Zoom: opts.Zoom, AutoLoad: true})
	engine.InstallDefaultStyle()
	if err := loadSites(ctx, engine, opts.DataPath, log); err != nil {
		return err
	}
	engine.LoadVisible()

	history, err := browser.NewMemoryHistory(opts.StartURL)
	if err != nil {
		return fmt.Errorf("start url: %w", err)
	}

	fetcher := newFetcher(ctx, cfg, log, detailMetrics)
	props := filters.NewPropertySource(func() []mapengine.Feature {
		return engine.QuerySourceFeatures(mapengine.SiteSource, mapengine.SiteSourceLayer)
	})
	surface := newConsoleSurface(out, sched)

	app := session.New(session.Deps{
		Map:       engine,
		History:   history,
		Clipboard: surface.clipboard,
		Notifier:  surface,
		Cursor:    surface.cursor,
		Popups:    surface,
		Details:   fetcher,
		Filters:   props,
		Exec:      loop,
		Frames:    frames,
		Log:       log,
		Metrics:   collector,
	})
	loop.Post(func() { _ = app.Initialize(ctx) })

	srv := serveHTTP(cfg.MetricsAddr, newRouter(collector, loop, app), log)
	defer func() {
		if srv == nil {
			return
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c := &console{
		app:     app,
		engine:  engine,
		history: history,
		filters: props,
		out:     out,
	}
	go readCommands(ctx, in, loop, c, log, cancel)

	ticking := frames.Start(ctx, 0)
	err = loop.Run(ctx)
	<-ticking
	app.Close()
	return err
}

func loadSites(ctx context.Context, engine *memory.Engine, path string, log logging.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sites: %w", err)
	}
	defer f.Close()

	n, err := engine.LoadGeoJSON(mapengine.SiteSource, mapengine.SiteSourceLayer, f)
	if err != nil {
		return fmt.Errorf("load sites from %s: %w", path, err)
	}
	log.Info(ctx, "loaded sites", logging.String("path", path), logging.Int("count", n))
	return nil
}

// newFetcher returns the detail client, fronted by redis when configured.
func newFetcher(ctx context.Context, cfg config.Config, log logging.Logger, metrics *observability.DetailCollector) detail.Fetcher {
	client := detail.NewClient(cfg.APIAt, cfg.HTTPTimeout, log, detail.WithMetrics(metrics))
	rdb := cfg.OpenRedis()
	if rdb == nil {
		return client
	}
	log.Info(ctx, "detail cache enabled", logging.String("redis", cfg.Redis.Addr))
	return detail.NewCached(client, detail.NewRedisCache(rdb, cfg.DetailTTL), log, metrics)
}

// readCommands feeds stdin lines to the console on the session thread. EOF
// ends the session.
func readCommands(ctx context.Context, in io.Reader, loop *eventloop.Loop, c *console, log logging.Logger, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		done := make(chan struct{})
		loop.Post(func() {
			defer close(done)
			if err := c.execute(ctx, line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		})
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn(ctx, "command input failed", logging.Err(err))
	}
	cancel()
}

func serveHTTP(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving metrics and debug endpoints", logging.String("addr", addr))
	return srv
}
