package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"floodwatch/config"
	"floodwatch/internal/flood"
	"floodwatch/internal/health"
	"floodwatch/internal/ingest"
	"floodwatch/internal/logger"
	"floodwatch/internal/output/alertjson"
	"floodwatch/internal/output/alertkafka"
	"floodwatch/internal/pipeline"
	"floodwatch/internal/rules"
	"floodwatch/internal/stats"
	"floodwatch/internal/store"
	"floodwatch/internal/watch"
	"floodwatch/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("floodwatch.yml"); err == nil {
		return "floodwatch.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "floodwatch.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "floodwatch.yml"
}

func applyDefaults(cfg *config.Config) {
	fw := &cfg.FloodWatch

	if fw.Ingest.Workers <= 0 {
		fw.Ingest.Workers = 4
	}
	if fw.Ingest.PreambleScanRows <= 0 {
		fw.Ingest.PreambleScanRows = ingest.DefaultPreambleScanRows
	}

	if fw.Flood.WindowWidth <= 0 {
		fw.Flood.WindowWidth = flood.DefaultWindowWidth
	}
	if fw.Flood.Threshold <= 0 {
		fw.Flood.Threshold = flood.DefaultThreshold
	}
	if len(fw.Flood.UnhealthyConditions) == 0 {
		fw.Flood.UnhealthyConditions = []string{
			"BAD", "BADPV", "IOFAILURE", "COMMFAIL", "UNCERTAIN",
			"OFFNORM", "OFF-NORMAL", "DISABLED",
		}
	}

	if len(fw.Health.Weights) == 0 {
		fw.Health.Weights = map[string]float64{
			models.DimCompleteness:  0.20,
			models.DimUnhealthy:     0.25,
			models.DimFloodTime:     0.25,
			models.DimConcentration: 0.15,
			models.DimTrend:         0.15,
		}
	}
	if len(fw.Health.GradeThresholds) == 0 {
		fw.Health.GradeThresholds = []config.GradeThreshold{
			{Min: 90, Label: "A"},
			{Min: 80, Label: "B"},
			{Min: 70, Label: "C"},
			{Min: 60, Label: "D"},
			{Min: 0, Label: "F"},
		}
	}
	if len(fw.Health.RiskThresholds) == 0 {
		fw.Health.RiskThresholds = []config.GradeThreshold{
			{Min: 80, Label: models.RiskLow},
			{Min: 60, Label: models.RiskModerate},
			{Min: 40, Label: models.RiskHigh},
			{Min: 0, Label: models.RiskCritical},
		}
	}
	if fw.Health.TrendWindowDays <= 0 {
		fw.Health.TrendWindowDays = 3
	}

	if fw.Stats.TopSources <= 0 {
		fw.Stats.TopSources = flood.DefaultTopSources
	}
	if fw.Stats.TopRawActions <= 0 {
		fw.Stats.TopRawActions = stats.DefaultTopRawActions
	}

	if fw.Cache.Dir == "" {
		fw.Cache.Dir = "artifacts"
	}
	if fw.Cache.KeepBackups <= 0 {
		fw.Cache.KeepBackups = 3
	}

	if fw.Lock.TTL <= 0 {
		fw.Lock.TTL = 2 * time.Minute
	}

	if fw.Alerts.Enabled && fw.Alerts.Mode == "" {
		fw.Alerts.Mode = "file"
	}
	if fw.Alerts.File.Path == "" {
		fw.Alerts.File.Path = "output/flood_alerts.jsonl"
	}

	if fw.Watch.Debounce <= 0 {
		fw.Watch.Debounce = watch.DefaultDebounce
	}
	if fw.Metrics.Addr == "" {
		fw.Metrics.Addr = ":9090"
	}
	if fw.Logging.Level == "" {
		fw.Logging.Level = "info"
	}

	for i := range fw.Plants {
		if fw.Plants[i].Pattern == "" {
			fw.Plants[i].Pattern = "*.csv"
		}
	}
}

// environment bundles everything a subcommand needs.
type environment struct {
	cfg     *config.Config
	builder *pipeline.Builder
	closers []func() error
}

func (e *environment) Close() {
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil {
			logger.Errorf("close: %v", err)
		}
	}
}

func setup(ctx context.Context, configArg string) (*environment, error) {
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.FloodWatch.Logging); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Infof("FloodWatch starting")
	logger.Infof("Config loaded from: %s", configPath)

	env := &environment{cfg: cfg}
	fw := cfg.FloodWatch

	var engine rules.Engine
	if fw.Rules.Enabled {
		if strings.TrimSpace(fw.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; rule tagging disabled")
		} else {
			sigmaEngine, ruleStats, err := rules.NewSigmaEngine(fw.Rules.Path)
			if err != nil {
				env.Close()
				return nil, fmt.Errorf("load classification rules: %w", err)
			}
			engine = sigmaEngine
			logger.Infof("Classification rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
				ruleStats.Loaded, ruleStats.SkippedComplex, ruleStats.SkippedInvalid, ruleStats.TotalFiles)
			if ruleStats.Loaded == 0 {
				logger.Warnf("No compatible rules loaded; rule tagging is effectively disabled")
			}
		}
	}

	calculator, err := health.NewCalculator(fw.Health)
	if err != nil {
		env.Close()
		return nil, err
	}

	fileStore, err := store.NewFileStore(fw.Cache.Dir, fw.Cache.KeepBackups)
	if err != nil {
		env.Close()
		return nil, err
	}

	var locker store.Locker
	if fw.Lock.Addr != "" {
		redisLocker, err := store.NewRedisLocker(store.RedisLockConfig{
			Addr:      fw.Lock.Addr,
			Password:  fw.Lock.Password,
			DB:        fw.Lock.DB,
			KeyPrefix: fw.Lock.KeyPrefix,
			TTL:       fw.Lock.TTL,
		})
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, redisLocker.Close)
		locker = redisLocker
		logger.Infof("Write lock mode: redis (%s)", fw.Lock.Addr)
	} else {
		locker = store.NewLocalLocker()
		logger.Infof("Write lock mode: local")
	}

	var alertWriter pipeline.AlertWriter
	if fw.Alerts.Enabled {
		switch fw.Alerts.Mode {
		case "file":
			w, err := alertjson.NewWriter(fw.Alerts.File.Path)
			if err != nil {
				env.Close()
				return nil, fmt.Errorf("create alert file writer: %w", err)
			}
			alertWriter = w
			logger.Infof("Alert output mode: file (%s)", fw.Alerts.File.Path)
		case "kafka":
			w, err := alertkafka.NewWriter(alertkafka.Config{
				Brokers: fw.Alerts.Kafka.Brokers,
				Topic:   fw.Alerts.Kafka.Topic,
			})
			if err != nil {
				env.Close()
				return nil, fmt.Errorf("create alert kafka writer: %w", err)
			}
			alertWriter = w
			logger.Infof("Alert output mode: kafka (%s)", fw.Alerts.Kafka.Topic)
		default:
			env.Close()
			return nil, fmt.Errorf("unknown alert output mode: %s", fw.Alerts.Mode)
		}
		env.closers = append(env.closers, alertWriter.Close)
	}

	var history *store.HistoryStore
	if fw.History.Enabled {
		historyCfg, err := store.ResolveHistoryConfig(store.HistoryConfig{
			DSN:    fw.History.DSN,
			Schema: fw.History.Schema,
		})
		if err != nil {
			env.Close()
			return nil, err
		}
		history, err = store.OpenHistory(ctx, historyCfg)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, history.Close)
		logger.Infof("Run history: postgres (schema %s)", historyCfg.Schema)
	}

	env.builder = &pipeline.Builder{
		Ingestor: &ingest.Ingestor{
			Workers:          fw.Ingest.Workers,
			PreambleScanRows: fw.Ingest.PreambleScanRows,
		},
		Detector: flood.NewDetector(flood.Config{
			WindowWidth:         fw.Flood.WindowWidth,
			Threshold:           fw.Flood.Threshold,
			UnhealthyConditions: fw.Flood.UnhealthyConditions,
			TopSources:          fw.Stats.TopSources,
		}),
		Calculator:      calculator,
		Aggregator:      &stats.Aggregator{TopRawActions: fw.Stats.TopRawActions},
		Engine:          engine,
		Store:           fileStore,
		Locker:          locker,
		Alerts:          alertWriter,
		History:         history,
		TopSources:      fw.Stats.TopSources,
		TrendWindowDays: fw.Health.TrendWindowDays,
	}
	return env, nil
}

func plantByID(cfg *config.Config, plantID string) (config.PlantConfig, bool) {
	for _, plant := range cfg.FloodWatch.Plants {
		if plant.ID == plantID {
			return plant, true
		}
	}
	return config.PlantConfig{}, false
}

func plantFiles(plant config.PlantConfig) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(plant.Dir, plant.Pattern))
	if err != nil {
		return nil, fmt.Errorf("resolve exports for plant %s: %w", plant.ID, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func selectPlants(cfg *config.Config, plantID string) ([]config.PlantConfig, error) {
	if plantID == "" {
		return cfg.FloodWatch.Plants, nil
	}
	plant, ok := plantByID(cfg, plantID)
	if !ok {
		return nil, fmt.Errorf("unknown plant id %q", plantID)
	}
	return []config.PlantConfig{plant}, nil
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	plantID := fs.String("plant", "", "Build a single plant (default: all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	env, err := setup(ctx, *configArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer env.Close()

	plants, err := selectPlants(env.cfg, *plantID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	// Plants are independent: no shared state below the cache manager.
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0
	for _, plant := range plants {
		wg.Add(1)
		go func(plant config.PlantConfig) {
			defer wg.Done()
			files, err := plantFiles(plant)
			if err == nil {
				_, err = env.builder.Build(ctx, plant.ID, files)
			}
			if err != nil {
				logger.Errorf("plant %s: build failed: %v", plant.ID, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(plant)
	}
	wg.Wait()

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d plant builds failed\n", failed, len(plants))
		return 1
	}
	fmt.Printf("built %d plant artifacts\n", len(plants))
	return 0
}

func runAugment(args []string) int {
	fs := flag.NewFlagSet("augment", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	plantID := fs.String("plant", "", "Plant id (required)")
	kind := fs.String("kind", models.EnrichmentEventStatistics, "Enrichment kind")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *plantID == "" {
		fmt.Fprintln(os.Stderr, "augment: -plant is required")
		return 2
	}

	ctx := context.Background()
	env, err := setup(ctx, *configArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer env.Close()

	plant, ok := plantByID(env.cfg, *plantID)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown plant id %q\n", *plantID)
		return 1
	}
	files, err := plantFiles(plant)
	if err == nil {
		err = env.builder.Augment(ctx, plant.ID, files, *kind)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "augment %s: %v\n", plant.ID, err)
		return 1
	}
	fmt.Printf("augmented %s with %s\n", plant.ID, *kind)
	return 0
}

func runHydrate(args []string) int {
	fs := flag.NewFlagSet("hydrate", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	plantID := fs.String("plant", "", "Hydrate a single plant (default: all)")
	topN := fs.Int("top", 0, "Top sources per window (default: stats.top_sources)")
	force := fs.Bool("force", false, "Recompute detail that is already present")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	env, err := setup(ctx, *configArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer env.Close()

	plants, err := selectPlants(env.cfg, *plantID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	for _, plant := range plants {
		files, err := plantFiles(plant)
		if err == nil {
			err = env.builder.Hydrate(ctx, plant.ID, files, *topN, *force)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "hydrate %s: %v\n", plant.ID, err)
			return 1
		}
	}
	fmt.Printf("hydrated %d plants\n", len(plants))
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	initial := fs.Bool("initial", true, "Build all plants once before watching")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := setup(ctx, *configArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer env.Close()

	rebuild := func(plantID string) {
		plant, ok := plantByID(env.cfg, plantID)
		if !ok {
			return
		}
		files, err := plantFiles(plant)
		if err == nil {
			_, err = env.builder.Build(ctx, plantID, files)
		}
		if err != nil {
			logger.Errorf("plant %s: rebuild failed: %v", plantID, err)
		}
	}

	if *initial {
		for _, plant := range env.cfg.FloodWatch.Plants {
			rebuild(plant.ID)
		}
	}

	targets := make([]watch.Target, 0, len(env.cfg.FloodWatch.Plants))
	for _, plant := range env.cfg.FloodWatch.Plants {
		targets = append(targets, watch.Target{PlantID: plant.ID, Dir: plant.Dir, Pattern: plant.Pattern})
	}
	watcher, err := watch.New(targets, env.cfg.FloodWatch.Watch.Debounce, rebuild)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	metricsSrv := &http.Server{Addr: env.cfg.FloodWatch.Metrics.Addr, Handler: promhttp.Handler()}
	go func() {
		logger.Infof("Metrics endpoint: %s/metrics", env.cfg.FloodWatch.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	go func() {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Watcher error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Infof("FloodWatch stopped")
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: floodwatch <build|augment|hydrate|watch> [flags]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "build":
		os.Exit(runBuild(os.Args[2:]))
	case "augment":
		os.Exit(runAugment(os.Args[2:]))
	case "hydrate":
		os.Exit(runHydrate(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}
