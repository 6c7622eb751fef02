// Command ascendant is the world-simulator process: it loads configuration,
// generates or restores the world and its cast of avatars, then runs the
// monthly Simulator loop behind an HTTP+WS control surface. Grounded on the
// teacher's cmd/worldsim/main.go wiring order (config → persistence → world
// generation → engine → api.Server → signal-driven shutdown).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/action/builtin"
	"github.com/talgya/ascendant/internal/api"
	"github.com/talgya/ascendant/internal/background"
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/config"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/entropy"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/gathering"
	"github.com/talgya/ascendant/internal/llmgateway"
	"github.com/talgya/ascendant/internal/persistence"
	"github.com/talgya/ascendant/internal/relations"
	"github.com/talgya/ascendant/internal/simulator"
	"github.com/talgya/ascendant/internal/translate"
	"github.com/talgya/ascendant/internal/worldmap"
)

const saveName = "world"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("ASCENDANT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	translate.Set(cfg.System.Language)

	if err := os.MkdirAll(cfg.Paths.Saves, 0o755); err != nil {
		logger.Error("create saves dir failed", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.GameConfigs, 0o755); err != nil {
		logger.Error("create game configs dir failed", "err", err)
		os.Exit(1)
	}

	registry := action.NewRegistry()
	builtin.Register(registry)

	var (
		store *entities.Store
		graph *relations.Graph
		m     *worldmap.Map
		phen  *background.Phenomenon
		now   clock.MonthStamp
	)

	existing, err := persistence.List(cfg.Paths.Saves)
	if err != nil {
		logger.Error("list saves failed", "err", err)
		os.Exit(1)
	}

	loaded := false
	for _, name := range existing {
		if name != saveName {
			continue
		}
		store, graph, m, phen, now, err = persistence.Load(cfg.Paths.Saves, saveName, registry)
		if err != nil {
			logger.Error("load save failed", "err", err)
			os.Exit(1)
		}
		loaded = true
		logger.Info("loaded existing world", "year", now.Year(), "month", now.Month(), "living", len(store.Living()))
	}

	if !loaded {
		seed := time.Now().UnixNano()
		genCfg := worldmap.DefaultGenConfig()
		genCfg.Seed = seed
		m = worldmap.Generate(genCfg)

		store = entities.NewStore()
		now = clock.MonthStamp(cfg.Game.StartYear * 12)

		centers := spawnCenters(m)
		spawner := entities.NewSpawner(seed)
		for _, av := range spawner.SpawnPopulation(cfg.Game.InitNPCNum, centers, now) {
			store.Register(av, false)
		}

		graph = relations.NewGraph(store)
		phen = nil

		logger.Info("generated new world", "seed", seed, "living", len(store.Living()))
	}

	logStore, err := eventlog.Open(cfg.Paths.GameConfigs + "/events.db")
	if err != nil {
		logger.Error("open event log failed", "err", err)
		os.Exit(1)
	}

	var gw *llmgateway.Gateway
	if cfg.LLM.Key != "" {
		gw = llmgateway.New(llmgateway.Config{
			Fast:                  llmgateway.Endpoint{BaseURL: cfg.LLM.BaseURL, Key: cfg.LLM.Key, Model: cfg.LLM.FastModelName},
			Normal:                llmgateway.Endpoint{BaseURL: cfg.LLM.BaseURL, Key: cfg.LLM.Key, Model: cfg.LLM.ModelName},
			MaxConcurrentRequests: cfg.AI.MaxConcurrentRequests,
			TemplatesDir:          cfg.Paths.Templates,
			CallTimeout:           30 * time.Second,
		})
	}

	ent := entropy.NewClient(os.Getenv("RANDOM_ORG_KEY"))

	gatherings := gathering.NewManager()
	gatherings.Register(&gathering.Tournament{IntervalMonths: 12})

	simCfg := simulator.DefaultConfig()
	simCfg.MaxActionRoundsPerTurn = cfg.Game.MaxActionRoundsPerTurn
	simCfg.RelationCheckThreshold = cfg.Social.RelationCheckThreshold
	simCfg.LongDeadCleanupYears = cfg.Game.LongDeadCleanupYears
	simCfg.FortuneProbability = cfg.Game.FortuneProbability
	simCfg.MisfortuneProbability = cfg.Game.MisfortuneProbability
	simCfg.Lifecycle.AwakeningRatePerMonth = cfg.Game.NPCAwakeningRatePerMonth

	seed := time.Now().UnixNano()
	sim := simulator.New(store, graph, m, logStore, gw, ent, gatherings, registry, now, simCfg, seed)
	sim.Phenomenon = phen

	srv := api.New(sim, logStore, registry, cfg.Paths.Saves, os.Getenv("ASCENDANT_ADMIN_KEY"))

	httpServer := &http.Server{
		Addr:    cfg.System.Host + ":" + portString(cfg.System.Port),
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
		}
	}()

	tickInterval := 5 * time.Second
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- simulator.RunForever(ctx, sim, tickInterval, func() bool { return srv.Paused() }, srv.BroadcastTick)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	<-runErrCh

	if err := persistence.Save(cfg.Paths.Saves, saveName, sim.Store, sim.Graph, sim.Map, sim.Phenomenon, sim.Now); err != nil {
		logger.Error("final save failed", "err", err)
		os.Exit(1)
	}
	logger.Info("world saved, exiting")
}
