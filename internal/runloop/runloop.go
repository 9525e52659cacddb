// Package runloop sequences one auction per tick: read the current
// candidate, promote it through the auction store, run the competition,
// execute the winner if any, then sleep until the next tick. The outer
// loop never terminates; a panic inside a tick is recovered at the tick
// boundary so it never reaches the outer loop.
package runloop

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meshauction/autopilot/internal/competition"
	"github.com/meshauction/autopilot/internal/domain"
)

// DefaultTickInterval is the sleep between ticks used when a RunLoop is
// built with a zero TickInterval. config.Config.TickInterval is the
// operator-facing knob for this.
const DefaultTickInterval = 1 * time.Second

// OrdersCache produces the current candidate auction snapshot. A nil
// return means there is nothing to solve this tick.
type OrdersCache interface {
	CurrentAuction(ctx context.Context) (*domain.Auction, error)
}

// AuctionStore assigns a monotonic AuctionId on promotion and persists the
// active auction. It is atomic: either it persists and returns an id
// strictly greater than all prior ids, or it fails without observable
// side effects.
type AuctionStore interface {
	ReplaceCurrentAuction(ctx context.Context, auction *domain.Auction) (domain.AuctionID, error)
}

// Executor runs the execute directive for a tick's winner and confirms
// settlement. It is satisfied by *execution.Director.
type Executor interface {
	Run(ctx context.Context, auctionID domain.AuctionID, winner competition.Result) error
}

// RunLoop is C8: the auction pipeline's outer control loop.
type RunLoop struct {
	OrdersCache  OrdersCache
	Store        AuctionStore
	Orchestrator *competition.Orchestrator
	Executor     Executor
	TickInterval time.Duration // zero uses DefaultTickInterval
}

// New wires the run loop's collaborators together. tickInterval is
// config.Config.TickInterval; pass 0 to take DefaultTickInterval.
func New(cache OrdersCache, store AuctionStore, orchestrator *competition.Orchestrator, executor Executor, tickInterval time.Duration) *RunLoop {
	return &RunLoop{OrdersCache: cache, Store: store, Orchestrator: orchestrator, Executor: executor, TickInterval: tickInterval}
}

// RunForever ticks until ctx is canceled. The process is expected to be
// supervised externally; this only stops for a clean shutdown signal.
func (r *RunLoop) RunForever(ctx context.Context) {
	interval := r.TickInterval
	if interval == 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs exactly one auction and never lets a panic escape to the
// outer loop — the process-supervisor contract is that a bad tick ends
// the tick, not the process.
func (r *RunLoop) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("tick panicked, recovering at tick boundary")
		}
	}()

	auction, err := r.OrdersCache.CurrentAuction(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read current auction")
		return
	}
	if auction == nil {
		log.Debug().Msg("no current auction")
		return
	}

	id, err := r.Store.ReplaceCurrentAuction(ctx, auction)
	if err != nil {
		log.Error().Err(err).Msg("failed to replace current auction")
		return
	}
	auction.ID = id

	log.Info().Uint64("auction_id", uint64(id)).Msg("solving")
	r.runAuction(ctx, auction)
}

func (r *RunLoop) runAuction(ctx context.Context, auction *domain.Auction) {
	winner, ok := r.Orchestrator.Run(ctx, auction)
	if !ok {
		return
	}

	log.Info().Int("driver_index", winner.DriverIndex).Uint64("auction_id", uint64(auction.ID)).
		Msg("executing with winning solver")
	if err := r.Executor.Run(ctx, auction.ID, winner); err != nil {
		log.Error().Int("driver_index", winner.DriverIndex).Err(err).Msg("solver failed to execute")
	}
}
