// Package config loads the optimizer configuration from an optional YAML
// file and VRPILS_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"vrpils/internal/errs"
	"vrpils/internal/logger"
	"vrpils/internal/model"
	"vrpils/internal/opt"
	"vrpils/internal/seed"
	"vrpils/internal/split"
)

// Config is the complete run configuration.
type Config struct {
	Log      logger.Config       `yaml:"log"`
	Run      RunConfig           `yaml:"run"`
	Vehicle  VehicleConfig       `yaml:"vehicle"`
	Search   SearchConfig        `yaml:"search"`
	Split    SplitConfig         `yaml:"split"`
	Instance seed.InstanceConfig `yaml:"instance"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Redis    RedisConfig         `yaml:"redis"`
}

// RunConfig carries the model parameters.
type RunConfig struct {
	Loops          int           `yaml:"loops"`
	MaxRunningTime time.Duration `yaml:"max_running_time"`
	Seed           int64         `yaml:"seed"`
	PDP            bool          `yaml:"pdp"`
	OpenStart      bool          `yaml:"open_start"`
	OpenEnd        bool          `yaml:"open_end"`
	LoadPlanning   bool          `yaml:"load_planning"`
	// Construction is "sequential" or "single".
	Construction string `yaml:"construction"`
}

// VehicleConfig describes the homogeneous fleet.
type VehicleConfig struct {
	Capacity     []float64 `yaml:"capacity"`
	MaxDuration  float64   `yaml:"max_duration"`
	MaxStops     int       `yaml:"max_stops"`
	MaxWaiting   float64   `yaml:"max_waiting"`
	FixedCost    float64   `yaml:"fixed_cost"`
	Count        int       `yaml:"count"`
	ShiftDriving float64   `yaml:"shift_driving"`
	BreakTime    float64   `yaml:"break_time"`
}

// SearchConfig tunes the local search and ILS.
type SearchConfig struct {
	Operators      []string      `yaml:"operators"`
	MaxSegment     int           `yaml:"max_segment"`
	OrOptWindow    int           `yaml:"or_opt_window"`
	ThreeOptWindow int           `yaml:"three_opt_window"`
	MaxQueue       int           `yaml:"max_queue"`
	Perturbation   string        `yaml:"perturbation"`
	PerturbMoves   int           `yaml:"perturb_moves"`
	RuinSize       int           `yaml:"ruin_size"`
	RuinRadius     float64       `yaml:"ruin_radius"`
	Threshold      float64       `yaml:"threshold"`
	ProgressEvery  time.Duration `yaml:"progress_every"`
}

// SplitConfig enables and tunes the block splitter.
type SplitConfig struct {
	Enabled bool `yaml:"enabled"`
	Blocks  int  `yaml:"blocks"`
	Workers int  `yaml:"workers"`
	Rounds  int  `yaml:"rounds"`
	Loops   int  `yaml:"loops"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// RedisConfig publishes progress events when URL is set.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: logger.DefaultConfig(),
		Run: RunConfig{
			Loops:        model.DefaultLoops,
			Construction: "sequential",
		},
		Vehicle: VehicleConfig{Capacity: []float64{100}},
		Search:  SearchConfig{Perturbation: opt.PerturbRelocate},
		Split:   SplitConfig{Blocks: 4, Workers: 4, Rounds: 5},
		Instance: seed.InstanceConfig{
			Customers: 100,
			Depots:    1,
			Width:     100,
			MaxDemand: 10,
		},
		Metrics: MetricsConfig{Path: "/metrics"},
		Redis:   RedisConfig{Prefix: "vrpils"},
	}
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(err, errs.CodeConfiguration, "parse config").WithField("path", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("VRPILS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("VRPILS_LOG_FORMAT", c.Log.Format)

	c.Run.Loops = getEnvInt("VRPILS_LOOPS", c.Run.Loops)
	c.Run.MaxRunningTime = getEnvDuration("VRPILS_MAX_RUNNING_TIME", c.Run.MaxRunningTime)
	c.Run.Seed = int64(getEnvInt("VRPILS_SEED", int(c.Run.Seed)))
	c.Run.PDP = getEnvBool("VRPILS_PDP", c.Run.PDP)
	c.Run.OpenStart = getEnvBool("VRPILS_OPEN_START", c.Run.OpenStart)
	c.Run.OpenEnd = getEnvBool("VRPILS_OPEN_END", c.Run.OpenEnd)
	c.Run.Construction = getEnv("VRPILS_CONSTRUCTION", c.Run.Construction)

	c.Vehicle.Count = getEnvInt("VRPILS_VEHICLES", c.Vehicle.Count)
	c.Vehicle.FixedCost = getEnvFloat("VRPILS_FIXED_COST", c.Vehicle.FixedCost)

	if ops := getEnv("VRPILS_OPERATORS", ""); ops != "" {
		c.Search.Operators = strings.Split(ops, ",")
	}
	c.Search.Perturbation = getEnv("VRPILS_PERTURBATION", c.Search.Perturbation)
	c.Search.Threshold = getEnvFloat("VRPILS_THRESHOLD", c.Search.Threshold)
	c.Search.RuinRadius = getEnvFloat("VRPILS_RUIN_RADIUS", c.Search.RuinRadius)

	c.Split.Enabled = getEnvBool("VRPILS_SPLIT", c.Split.Enabled)
	c.Split.Blocks = getEnvInt("VRPILS_SPLIT_BLOCKS", c.Split.Blocks)
	c.Split.Workers = getEnvInt("VRPILS_SPLIT_WORKERS", c.Split.Workers)

	c.Instance.Customers = getEnvInt("VRPILS_CUSTOMERS", c.Instance.Customers)
	c.Instance.Depots = getEnvInt("VRPILS_DEPOTS", c.Instance.Depots)
	c.Instance.Shipments = getEnvInt("VRPILS_SHIPMENTS", c.Instance.Shipments)

	c.Metrics.Addr = getEnv("VRPILS_METRICS_ADDR", c.Metrics.Addr)
	c.Redis.URL = getEnv("VRPILS_REDIS_URL", c.Redis.URL)
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Run.Loops < 0 {
		return errs.Configuration("run.loops must not be negative, got %d", c.Run.Loops)
	}
	if c.Run.PDP && c.Instance.Depots > 1 {
		return errs.Configuration("pickup and delivery mode needs a single depot, got %d", c.Instance.Depots)
	}
	switch c.Run.Construction {
	case "sequential", "single":
	default:
		return errs.Configuration("unknown construction %q", c.Run.Construction)
	}
	for _, capacity := range c.Vehicle.Capacity {
		if capacity < 0 {
			return errs.Configuration("vehicle capacity must not be negative")
		}
	}
	if c.Instance.Customers < 0 || c.Instance.Shipments < 0 {
		return errs.Configuration("instance sizes must not be negative")
	}
	if err := c.Options().Validate(); err != nil {
		return err
	}
	for _, name := range c.Search.Operators {
		if _, err := opt.NewOperator(name, c.Options()); err != nil {
			return err
		}
	}
	return c.SplitOptions().Validate()
}

// Params maps the run section to model parameters.
func (c *Config) Params() model.Params {
	return model.Params{
		Loops:          c.Run.Loops,
		MaxRunningTime: c.Run.MaxRunningTime,
		PDP:            c.Run.PDP,
		OpenStart:      c.Run.OpenStart,
		OpenEnd:        c.Run.OpenEnd,
		LoadPlanning:   c.Run.LoadPlanning,
	}
}

// VehicleModel maps the vehicle section.
func (c *Config) VehicleModel() model.Vehicle {
	v := c.Vehicle
	return model.Vehicle{
		Name:         "default",
		Capacity:     v.Capacity,
		MaxDuration:  v.MaxDuration,
		MaxStops:     v.MaxStops,
		MaxWaiting:   v.MaxWaiting,
		FixedCost:    v.FixedCost,
		Count:        v.Count,
		ShiftDriving: v.ShiftDriving,
		BreakTime:    v.BreakTime,
	}
}

// Options maps the search section to engine options.
func (c *Config) Options() opt.Options {
	s := c.Search
	return opt.Options{
		Seed:           c.Run.Seed,
		Operators:      s.Operators,
		MaxSegment:     s.MaxSegment,
		OrOptWindow:    s.OrOptWindow,
		ThreeOptWindow: s.ThreeOptWindow,
		MaxQueue:       s.MaxQueue,
		Perturbation:   s.Perturbation,
		PerturbMoves:   s.PerturbMoves,
		RuinSize:       s.RuinSize,
		RuinRadius:     s.RuinRadius,
		Threshold:      s.Threshold,
		ProgressEvery:  s.ProgressEvery,
	}
}

// SplitOptions maps the split section.
func (c *Config) SplitOptions() split.Options {
	return split.Options{
		Blocks:  c.Split.Blocks,
		Workers: c.Split.Workers,
		Rounds:  c.Split.Rounds,
		Loops:   c.Split.Loops,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
