// Package settlement correlates a submitted settlement transaction with
// on-chain state by scanning a reorg-safe block window for a transaction
// whose calldata ends with a known tag.
package settlement

import (
	"bytes"
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxReorgDepth is the reorg-safe lower bound subtracted from
	// the current block before scanning starts, used when a Waiter is
	// built with a zero MaxReorgDepth. config.Config.MaxReorgDepth is the
	// operator-facing knob for this.
	DefaultMaxReorgDepth uint64 = 64

	// DefaultMaxWaitTime bounds the wall-clock time the waiter spends
	// looking for the tagged transaction, used when a Waiter is built with
	// a zero MaxWaitTime. config.Config.MaxWaitTime is the operator-facing
	// knob for this.
	DefaultMaxWaitTime = 60 * time.Second
)

// Transaction is the minimal view of an on-chain transaction the waiter
// needs: its hash and its full calldata.
type Transaction struct {
	Hash  common.Hash
	Input []byte
}

// ChainObserver is the external collaborator the waiter polls: current
// block height, the settlement-event tx hash index, and transaction
// lookup by hash.
type ChainObserver interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	RecentSettlementTxHashes(ctx context.Context, fromBlock, toBlock uint64) ([]common.Hash, error)
	Transaction(ctx context.Context, hash common.Hash) (*Transaction, error)
}

// Waiter scans for a settlement transaction tagged with a given suffix.
type Waiter struct {
	Observer             ChainObserver
	NetworkBlockInterval time.Duration
	MaxWaitTime          time.Duration // zero uses DefaultMaxWaitTime
	MaxReorgDepth        uint64        // zero uses DefaultMaxReorgDepth
}

// New builds a Waiter against the given chain observer. blockInterval is
// the chain's base block time, used to convert maxWaitTime into a block
// count and to pace the poll loop. maxWaitTime and maxReorgDepth are
// config.Config.MaxWaitTime and config.Config.MaxReorgDepth; pass 0 for
// either to take the matching Default*.
func New(observer ChainObserver, blockInterval, maxWaitTime time.Duration, maxReorgDepth uint64) *Waiter {
	return &Waiter{
		Observer:             observer,
		NetworkBlockInterval: blockInterval,
		MaxWaitTime:          maxWaitTime,
		MaxReorgDepth:        maxReorgDepth,
	}
}

func (w *Waiter) maxWaitTime() time.Duration {
	if w.MaxWaitTime != 0 {
		return w.MaxWaitTime
	}
	return DefaultMaxWaitTime
}

func (w *Waiter) maxReorgDepth() uint64 {
	if w.MaxReorgDepth != 0 {
		return w.MaxReorgDepth
	}
	return DefaultMaxReorgDepth
}

// WaitForSettlement tries to find a transaction whose calldata ends in
// tag. It returns (nil, nil) if nothing is found within MaxWaitTime — that
// is a normal outcome, not an error. A non-transient observer error (e.g.
// RPC unreachable) is propagated.
func (w *Waiter) WaitForSettlement(ctx context.Context, tag []byte) (*Transaction, error) {
	current, err := w.Observer.CurrentBlock(ctx)
	if err != nil {
		return nil, err
	}

	// Start earlier than the current block: the Execute RPC may already be
	// broadcasting by the time we start observing, and this protects against
	// a shallow reorg rewriting the block we started from.
	start := saturatingSub(current, w.maxReorgDepth())
	maxWaitBlocks := ceilDiv(w.maxWaitTime(), w.NetworkBlockInterval)
	deadline := current + maxWaitBlocks

	log.Debug().Uint64("current", current).Uint64("start", start).Uint64("deadline", deadline).
		Hex("tag", tag).Msg("waiting for settlement tag")

	seen := make(map[common.Hash]struct{})
	pollInterval := w.NetworkBlockInterval / 2
	wallDeadline := time.Now().Add(w.maxWaitTime())

	for {
		current, err = w.Observer.CurrentBlock(ctx)
		if err != nil {
			return nil, err
		}
		// The loop stops once the chain has moved past the deadline block,
		// or once MaxWaitTime of wall-clock time has passed; until then it
		// keeps scanning the same window for the tag.
		if current > deadline || time.Now().After(wallDeadline) {
			return nil, nil
		}

		hashes, err := w.Observer.RecentSettlementTxHashes(ctx, start, deadline)
		if err != nil {
			return nil, err
		}

		for _, hash := range hashes {
			if _, ok := seen[hash]; ok {
				continue
			}
			tx, err := w.Observer.Transaction(ctx, hash)
			if err != nil {
				return nil, err
			}
			if tx == nil {
				// Disappeared due to reorg between hash discovery and fetch.
				// Tolerated: try again next iteration, don't mark as seen.
				continue
			}
			if bytes.HasSuffix(tx.Input, tag) {
				return tx, nil
			}
			seen[hash] = struct{}{}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func ceilDiv(d, unit time.Duration) uint64 {
	if unit <= 0 {
		return 0
	}
	n := d / unit
	if d%unit != 0 {
		n++
	}
	return uint64(n)
}
