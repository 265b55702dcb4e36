package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"spreadbot-go/internal/config"
	"spreadbot-go/internal/debounce"
	"spreadbot-go/internal/engine"
	"spreadbot-go/internal/executor"
	"spreadbot-go/internal/market"
	"spreadbot-go/internal/metrics"
	"spreadbot-go/internal/position"
	"spreadbot-go/internal/reconcile"
	"spreadbot-go/internal/spread"
	"spreadbot-go/internal/store"
	"spreadbot-go/internal/util"
	"spreadbot-go/internal/venue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	venueA := market.Venue(cfg.VenueA.Name)
	venueB := market.Venue(cfg.VenueB.Name)

	clientA := venue.NewRESTClient(venueA, cfg.VenueA.BaseURL, os.Getenv(cfg.VenueA.APIKeyEnv), cfg.Execution.LegTimeout())
	clientB := venue.NewRESTClient(venueB, cfg.VenueB.BaseURL, os.Getenv(cfg.VenueB.APIKeyEnv), cfg.Execution.LegTimeout())
	gateway := venue.NewPair(venueA, clientA, venueB, clientB)

	sourceA := quoteSource(ctx, cfg.VenueA, venueA, cfg.Strategy.Token, clientA, log)
	sourceB := quoteSource(ctx, cfg.VenueB, venueB, cfg.Strategy.Token, clientB, log)

	trades, err := store.NewTradeStore(cfg.Storage.TradesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open trade store")
	}
	defer trades.Close()

	var events *store.EventRecorder
	if cfg.Storage.EventsPath != "" {
		events, err = store.NewEventRecorder(cfg.Storage.EventsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open event recorder")
		}
		defer events.Close()
	}

	model := position.NewModel()
	coord := executor.New(gateway, model, executor.Config{
		Token:      cfg.Strategy.Token,
		VenueA:     venueA,
		VenueB:     venueB,
		Margin:     cfg.Execution.Margin,
		Leverage:   cfg.Execution.Leverage,
		SizeStepA:  cfg.VenueA.SizeStep,
		SizeStepB:  cfg.VenueB.SizeStep,
		LegTimeout: cfg.Execution.LegTimeout(),
		Limits:     executor.Limits{MaxNotionalPerTrade: cfg.Execution.MaxNotionalPerTrade},
	}, util.Component(log, "executor"))

	eng := engine.New(engine.Deps{
		VenueA:  venueA,
		VenueB:  venueB,
		SourceA: sourceA,
		SourceB: sourceB,
		Token:   cfg.Strategy.Token,
		Spreads: spread.NewEngine(cfg.Strategy.Window, cfg.Strategy.Decay),
		Debouncer: debounce.New(debounce.Params{
			EntryThreshold:    cfg.Strategy.EntryThreshold,
			ExitThreshold:     cfg.Strategy.ExitThreshold,
			StopLossThreshold: cfg.Strategy.StopLossThreshold,
			MinSpreadFilter:   cfg.Strategy.MinSpreadFilter,
			MinSignalDuration: cfg.Strategy.MinSignalDuration(),
			MaxHold:           cfg.Strategy.MaxHold(),
		}),
		Model:      model,
		Coord:      coord,
		Reconciler: reconcile.New(gateway, model, cfg.Strategy.Token, venueA, venueB, util.Component(log, "reconcile")),
		Trades:     trades,
		Events:     events,
	}, engine.Params{
		TickInterval:   cfg.Strategy.TickInterval(),
		WarmupTicks:    cfg.Strategy.WarmupTicks,
		GraceTicks:     cfg.Strategy.GraceTicks,
		ReconcileTicks: cfg.Strategy.ReconcileTicks,
	}, util.Component(log, "engine"))

	_ = eng.Run(ctx)

	stats := eng.Stats()
	log.Info().
		Int("trades", stats.TotalTrades).
		Float64("total_pnl", stats.TotalPnL).
		Float64("win_rate", stats.WinRate).
		Float64("avg_ticks_held", stats.AvgDuration).
		Msg("session summary")
}

// quoteSource prefers the venue's websocket book stream when one is
// configured and falls back to REST polling otherwise.
func quoteSource(ctx context.Context, vcfg config.Venue, v market.Venue, token string, rest *venue.RESTClient, log zerolog.Logger) venue.QuoteSource {
	if vcfg.WSURL == "" {
		return rest
	}
	// No warm-up wait: until the first frame arrives GetQuote errors
	// and the engine skips ticks, which is the designed degradation.
	ws := venue.NewWSQuoteSource(v, vcfg.WSURL, token, 3*time.Second, util.Component(log, "ws-"+vcfg.Name))
	go ws.Run(ctx)
	return ws
}
