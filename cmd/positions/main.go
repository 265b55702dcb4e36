// Command positions prints both venues' open positions and the recent
// closed-trade history. Meant for checking venue state after a partial
// fill or an unclean shutdown before restarting the coordinator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"spreadbot-go/internal/config"
	"spreadbot-go/internal/market"
	"spreadbot-go/internal/store"
	"spreadbot-go/internal/util"
	"spreadbot-go/internal/venue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	limit := flag.Int("trades", 10, "number of recent trades to print")
	flag.Parse()

	_ = godotenv.Load()
	log := util.NewLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	printVenue(ctx, cfg.VenueA, cfg.Strategy.Token)
	printVenue(ctx, cfg.VenueB, cfg.Strategy.Token)

	trades, err := store.NewTradeStore(cfg.Storage.TradesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open trade store")
	}
	defer trades.Close()

	history, err := trades.List(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("list trades")
	}
	fmt.Printf("\nrecent trades (%d):\n", len(history))
	for _, t := range history {
		fmt.Printf("  %s  %-13s  %-12s  pnl=%+.4f  held=%d ticks\n",
			t.ExitTime.Format(time.RFC3339), t.Direction, t.Reason, t.PnL, t.DurationTicks)
	}
}

func printVenue(ctx context.Context, vcfg config.Venue, token string) {
	client := venue.NewRESTClient(market.Venue(vcfg.Name), vcfg.BaseURL, os.Getenv(vcfg.APIKeyEnv), 10*time.Second)
	exp, open, err := client.GetOpenPosition(ctx, market.Venue(vcfg.Name), token)
	switch {
	case err != nil:
		fmt.Printf("%-12s %s: query failed: %v\n", vcfg.Name, token, err)
	case !open:
		fmt.Printf("%-12s %s: flat\n", vcfg.Name, token)
	default:
		fmt.Printf("%-12s %s: size=%+.6f entry=%.4f\n", vcfg.Name, token, exp.Size, exp.EntryPrice)
	}
}
