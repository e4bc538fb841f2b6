// Command vrpils generates a random routing instance, builds a starting plan
// and improves it with iterated local search, optionally split into
// parallel blocks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vrpils/internal/buildinfo"
	"vrpils/internal/config"
	"vrpils/internal/logger"
	"vrpils/internal/metrics"
	"vrpils/internal/opt"
	"vrpils/internal/progress"
	"vrpils/internal/seed"
	"vrpils/internal/solution"
	"vrpils/internal/split"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("VRPILS_CONFIG"), "YAML config file")
		seedFlag    = flag.Int64("seed", 0, "random seed (0 keeps the configured one)")
		loops       = flag.Int("loops", 0, "ILS loops (0 keeps the configured value)")
		budget      = flag.Duration("time", 0, "wall-clock budget (0 keeps the configured value)")
		customers   = flag.Int("customers", 0, "customers to generate (0 keeps the configured value)")
		useSplit    = flag.Bool("split", false, "optimize with the block splitter")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		redisURL    = flag.String("redis-url", "", "publish progress events to this Redis")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *seedFlag != 0 {
		cfg.Run.Seed = *seedFlag
	}
	if cfg.Run.Seed == 0 {
		cfg.Run.Seed = time.Now().UnixNano()
	}
	if *loops > 0 {
		cfg.Run.Loops = *loops
	}
	if *budget > 0 {
		cfg.Run.MaxRunningTime = *budget
	}
	if *customers > 0 {
		cfg.Instance.Customers = *customers
	}
	if *useSplit {
		cfg.Split.Enabled = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *redisURL != "" {
		cfg.Redis.URL = *redisURL
	}

	logger.Init(cfg.Log)
	log := logger.Component("cli")
	buildinfo.Log(log.Info()).Int64("seed", cfg.Run.Seed).Msg("starting")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	metrics.RegisterDefault()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics, log)
		defer func() {
			shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdown)
		}()
	}

	var pub progress.Publisher
	if cfg.Redis.URL != "" {
		broker, err := progress.NewRedisBroker(cfg.Redis.URL, cfg.Redis.Prefix, logger.Component("progress"))
		if err != nil {
			return fmt.Errorf("redis broker: %w", err)
		}
		defer broker.Close()
		if err := broker.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		pub = broker
	} else {
		broker := progress.NewBroker()
		events := broker.Subscribe(progress.AllTopics)
		done := make(chan struct{})
		go func() {
			defer close(done)
			watch(events, logger.Component("progress"))
		}()
		defer func() {
			broker.Unsubscribe(progress.AllTopics, events)
			<-done
		}()
		pub = broker
	}

	s, err := initial(cfg)
	if err != nil {
		return err
	}
	log.Info().
		Int("customers", s.Customers()).
		Int("routes", s.Quality().Routes).
		Float64("fitness", s.Fitness()).
		Msg("initial plan")

	engine, err := opt.NewEngine(cfg.Options(), logger.Component("ils"), pub)
	if err != nil {
		return err
	}

	var res *opt.Result
	if cfg.Split.Enabled {
		sp, err := split.New(engine, cfg.SplitOptions(), logger.Component("split"))
		if err != nil {
			return err
		}
		res, err = sp.Optimize(ctx, s)
		if err != nil && res == nil {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Msg("split stopped early")
		}
	} else {
		res, err = engine.Optimize(ctx, s)
		if err != nil && (res == nil || res.Best == nil) {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Msg("search stopped early")
		}
	}
	summarize(log, res)
	return nil
}

// initial generates the instance and the starting plan.
func initial(cfg *config.Config) (*solution.Solution, error) {
	in := seed.Random(cfg.Instance, rand.New(rand.NewSource(cfg.Run.Seed)))
	m := in.Model(cfg.VehicleModel(), cfg.Params())
	build := seed.Sequential
	if cfg.Run.Construction == "single" {
		build = seed.OneRoutePerStop
	}
	return build(m, in.Stops)
}

// watch logs improvements and split rounds until events is closed.
func watch(events <-chan progress.Event, log zerolog.Logger) {
	for evt := range events {
		switch evt.Type {
		case progress.TypeImproved, progress.TypeSplitRound:
			log.Debug().Str("event", evt.Type).Interface("data", evt.Data).Msg("progress")
		}
	}
}

func serveMetrics(cfg config.MetricsConfig, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("path", cfg.Path).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}

func summarize(log zerolog.Logger, res *opt.Result) {
	st := res.Stats
	q := res.Best.Quality()
	log.Info().
		Str("run_id", res.RunID).
		Float64("initial", st.InitialFitness).
		Float64("best", q.Fitness()).
		Float64("cost", q.Cost).
		Float64("penalty", q.Penalty).
		Int("routes", q.Routes).
		Int("iterations", st.Iterations).
		Int("rounds", st.Rounds).
		Int("improvements", st.Improvements).
		Dur("elapsed", st.Elapsed).
		Msg("finished")
	for name, o := range st.Operators {
		log.Debug().
			Str("operator", name).
			Int("selected", o.Selected).
			Int("accepted", o.Accepted).
			Int("rejected", o.Rejected).
			Float64("weight", o.Weight).
			Msg("operator")
	}
	for _, r := range res.Best.Report() {
		log.Debug().
			Int("route", r.Route).
			Int("depot", r.Depot).
			Int("stops", r.Stops).
			Float64("distance", r.Distance).
			Float64("duration", r.Duration).
			Bool("feasible", r.Quality.Feasible()).
			Msg("route")
	}
	if q.Penalty > 0 {
		log.Warn().Interface("violations", q.Violations).Msg("best plan is infeasible")
	}
}
