// Command autopilot runs the decentralized auction run-loop: it promotes
// the current candidate auction, runs the solver competition, executes the
// winner, and confirms settlement, once per tick, forever.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/meshauction/autopilot/internal/chain"
	"github.com/meshauction/autopilot/internal/competition"
	"github.com/meshauction/autopilot/internal/config"
	"github.com/meshauction/autopilot/internal/driverapi"
	"github.com/meshauction/autopilot/internal/notify"
	"github.com/meshauction/autopilot/internal/ordersfeed"
	"github.com/meshauction/autopilot/internal/priceoracle"
	"github.com/meshauction/autopilot/internal/runloop"
	"github.com/meshauction/autopilot/internal/settlement"
	"github.com/meshauction/autopilot/internal/store"

	"github.com/meshauction/autopilot/execution"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Int("drivers", len(cfg.DriverURLs)).Msg("autopilot starting")

	auctionStore, err := store.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open auction store")
	}

	settlementIndex, err := chain.NewSettlementIndex(cfg.SettlementIndexDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open settlement index")
	}
	defer settlementIndex.Close()

	chainObserver, err := chain.NewObserver(cfg.EthRPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial eth rpc")
	}

	observer := &chainView{Observer: chainObserver, Index: settlementIndex}
	waiter := settlement.New(observer, cfg.NetworkBlockInterval, cfg.MaxWaitTime, cfg.MaxReorgDepth)

	feed := ordersfeed.New(cfg.OrdersFeedWSURL)
	feed.Start()
	defer feed.Stop()

	oracle := priceoracle.New(cfg.EthRPCURL, defaultPriceFeeds())
	oracle.Start()
	defer oracle.Stop()

	var notifier execution.Notifier = notify.Noop{}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifier disabled, continuing without it")
		} else {
			notifier = tg
		}
	}

	solveDrivers := make([]competition.Driver, len(cfg.DriverURLs))
	executeDrivers := make([]execution.Driver, len(cfg.DriverURLs))
	for i, url := range cfg.DriverURLs {
		client := driverapi.NewClient(driverName(i), url, cfg.HTTPTotalTimeout, cfg.ResponseSizeLimit)
		solveDrivers[i] = client
		executeDrivers[i] = client
	}

	orchestrator := competition.New(solveDrivers, cfg.SolveBudget)
	director := execution.New(executeDrivers, waiter, notifier)
	loop := runloop.New(feed, auctionStore, orchestrator, director, cfg.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.RunForever(ctx)

	log.Info().Msg("run loop started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
}

func driverName(i int) string {
	return "driver-" + string(rune('a'+i))
}

// chainView composes the ethclient-backed Observer with the SQL
// SettlementIndex into the single settlement.ChainObserver the waiter
// depends on.
type chainView struct {
	Observer *chain.Observer
	Index    *chain.SettlementIndex
}

func (c *chainView) CurrentBlock(ctx context.Context) (uint64, error) {
	return c.Observer.CurrentBlock(ctx)
}

func (c *chainView) RecentSettlementTxHashes(ctx context.Context, from, to uint64) ([]common.Hash, error) {
	return c.Index.RecentSettlementTxHashes(ctx, from, to)
}

func (c *chainView) Transaction(ctx context.Context, hash common.Hash) (*settlement.Transaction, error) {
	return c.Observer.Transaction(ctx, hash)
}

// defaultPriceFeeds lists the reference aggregators the price oracle
// adapter polls. Empty by default: operators wire in the feeds relevant to
// their settlement-token set via a future config extension.
func defaultPriceFeeds() []priceoracle.Feed {
	return nil
}
