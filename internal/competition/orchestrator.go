// Package competition fans a solve request out to every configured driver,
// collects the successful responses, and picks a winner by score with a
// fair random tie-break.
package competition

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/meshauction/autopilot/internal/domain"
	"github.com/meshauction/autopilot/internal/driverapi"
)

// DefaultSolveBudget is the per-auction solve deadline used when an
// Orchestrator is built with a zero SolveBudget — config.Config.SolveBudget
// is the operator-facing knob for this (SPEC_FULL.md §6, C9 → C5).
const DefaultSolveBudget = 15 * time.Second

// Driver is the subset of driverapi.Client the orchestrator depends on, so
// tests can substitute a fake.
type Driver interface {
	Solve(ctx context.Context, req *driverapi.SolveRequest) (*driverapi.SolveResponse, error)
}

// Result pairs a winning (or any collected) response with the index of the
// driver that produced it.
type Result struct {
	DriverIndex int
	Response    driverapi.SolveResponse
}

// Orchestrator runs one auction's solver competition.
type Orchestrator struct {
	Drivers     []Driver
	Rand        *rand.Rand    // process-local PRNG; nil seeds a fresh one from the clock on each Run
	SolveBudget time.Duration // zero uses DefaultSolveBudget
}

// New builds an orchestrator over the given drivers, seeded once at
// startup — cryptographic strength is not required for tie-break fairness.
// solveBudget is config.Config.SolveBudget; pass 0 to take DefaultSolveBudget.
func New(drivers []Driver, solveBudget time.Duration) *Orchestrator {
	return &Orchestrator{
		Drivers:     drivers,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		SolveBudget: solveBudget,
	}
}

func (o *Orchestrator) solveBudget() time.Duration {
	if o.SolveBudget != 0 {
		return o.SolveBudget
	}
	return DefaultSolveBudget
}

// Run fans the auction out to every driver and returns the winner, or
// ok=false if no driver produced a usable solution (including the
// all-liquidity skip condition, in which case no driver is even
// contacted).
func (o *Orchestrator) Run(ctx context.Context, auction *domain.Auction) (Result, bool) {
	if auction.AllLiquidity() {
		log.Debug().Uint64("auction_id", uint64(auction.ID)).Msg("all-liquidity auction, skipping competition")
		return Result{}, false
	}

	req := o.buildRequest(auction)
	results := o.solve(ctx, req)
	return selectWinner(results, o.rng())
}

func (o *Orchestrator) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (o *Orchestrator) buildRequest(auction *domain.Auction) *driverapi.SolveRequest {
	orders := make([]driverapi.Order, len(auction.Orders))
	for i, ord := range auction.Orders {
		orders[i] = driverapi.OrderFromDomain(ord)
	}
	return &driverapi.SolveRequest{
		AuctionID: auction.ID,
		Orders:    orders,
		Prices:    auction.Prices,
		// RFC-3339 UTC on the wire (spec.md §6): Deadline must carry a Z
		// suffix regardless of the host's local timezone.
		Deadline: time.Now().UTC().Add(o.solveBudget()),
	}
}

// solve invokes every driver in parallel, each wrapped in its own
// SolveBudget timeout so one slow driver never pins the whole auction. An
// errgroup.Group joins the fan-out; its Go()/Wait() pair is used purely
// for the WaitGroup-style join, not for error propagation — a driver's
// error never cancels its siblings, because every score is needed to pick
// the best, and one driver's failure must not cost the others theirs.
func (o *Orchestrator) solve(ctx context.Context, req *driverapi.SolveRequest) []Result {
	var (
		eg      errgroup.Group
		mu      sync.Mutex
		results = make([]Result, 0, len(o.Drivers))
		budget  = o.solveBudget()
	)

	for i, d := range o.Drivers {
		index, driver := i, d
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()

			resp, err := driver.Solve(callCtx, req)
			if err != nil {
				log.Warn().Int("driver_index", index).Err(err).Msg("driver solve error")
				return nil
			}
			if math.IsNaN(resp.Score) {
				log.Warn().Int("driver_index", index).Msg("driver returned NaN score, dropping")
				return nil
			}

			mu.Lock()
			results = append(results, Result{DriverIndex: index, Response: *resp})
			mu.Unlock()
			return nil
		})
	}

	eg.Wait()
	return results
}

// selectWinner shuffles the collected results for unbiased tie-breaking,
// then stable-sorts ascending by score so the shuffle decides ties; the
// last element is the winner.
func selectWinner(results []Result, rng *rand.Rand) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	rng.Shuffle(len(results), func(i, j int) {
		results[i], results[j] = results[j], results[i]
	})
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Response.Score < results[j].Response.Score
	})
	return results[len(results)-1], true
}
