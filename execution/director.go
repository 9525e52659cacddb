// Package execution sends the execute directive to the winning driver and
// hands off to the settlement waiter. It is C6 in the auction pipeline:
// C5's winner strictly happens-after every solve response has been
// collected, and this package is what turns that winner into an on-chain
// settlement attempt.
package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meshauction/autopilot/internal/competition"
	"github.com/meshauction/autopilot/internal/domain"
	"github.com/meshauction/autopilot/internal/driverapi"
	"github.com/meshauction/autopilot/internal/settlement"
)

// ErrExecuteFailed wraps a driver's execute-call failure. There is no
// fallback to the runner-up in this iteration — the tick simply ends.
var ErrExecuteFailed = errors.New("execution: driver execute call failed")

// Driver is the subset of driverapi.Client the director depends on.
type Driver interface {
	Execute(ctx context.Context, solutionID string, req *driverapi.ExecuteRequest) (*driverapi.ExecuteResponse, error)
}

// Notifier receives best-effort operational events. A nil Notifier is
// valid and simply means nothing is notified.
type Notifier interface {
	Notify(ctx context.Context, event string)
}

// Director executes a tick's winning solution and waits for settlement.
type Director struct {
	Drivers  []Driver
	Waiter   *settlement.Waiter
	Notifier Notifier
}

// New builds a Director over the same driver list the competition
// orchestrator used, indexed identically.
func New(drivers []Driver, waiter *settlement.Waiter, notifier Notifier) *Director {
	return &Director{Drivers: drivers, Waiter: waiter, Notifier: notifier}
}

// Run issues exactly one execute call — to the winning driver only — then
// awaits settlement. A nil *settlement.Transaction return (timeout) is
// logged at debug; a found transaction is logged with its hash. Either way
// the tick completes: a missing settlement is not itself an error.
func (d *Director) Run(ctx context.Context, auctionID domain.AuctionID, winner competition.Result) error {
	if winner.DriverIndex < 0 || winner.DriverIndex >= len(d.Drivers) {
		return fmt.Errorf("execution: winner driver index %d out of range", winner.DriverIndex)
	}

	tag := auctionID.Tag()
	req := &driverapi.ExecuteRequest{
		AuctionID:             auctionID,
		TransactionIdentifier: tag,
	}

	driver := d.Drivers[winner.DriverIndex]
	if _, err := driver.Execute(ctx, winner.Response.ID, req); err != nil {
		log.Error().Int("driver_index", winner.DriverIndex).Err(err).Msg("solver failed to execute")
		d.notify(ctx, fmt.Sprintf("execute failed for auction %d on driver %d: %v", auctionID, winner.DriverIndex, err))
		return fmt.Errorf("%w: %v", ErrExecuteFailed, err)
	}

	tx, err := d.Waiter.WaitForSettlement(ctx, tag)
	if err != nil {
		return fmt.Errorf("wait for settlement transaction: %w", err)
	}
	if tx == nil {
		log.Debug().Uint64("auction_id", uint64(auctionID)).Msg("settlement transaction not observed within wait budget")
		d.notify(ctx, fmt.Sprintf("auction %d: settlement not observed", auctionID))
		return nil
	}

	log.Debug().Uint64("auction_id", uint64(auctionID)).Str("tx", tx.Hash.Hex()).Msg("settled")
	d.notify(ctx, fmt.Sprintf("auction %d settled in tx %s", auctionID, tx.Hash.Hex()))
	return nil
}

func (d *Director) notify(ctx context.Context, event string) {
	if d.Notifier == nil {
		return
	}
	d.Notifier.Notify(ctx, event)
}
