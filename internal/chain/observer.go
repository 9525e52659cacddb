package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meshauction/autopilot/internal/settlement"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ETHCLIENT CHAIN OBSERVER - current block + transaction lookup
// ═══════════════════════════════════════════════════════════════════════════════

// currentBlockTTL bounds how often Observer hits the node for the block
// number: the settlement waiter polls every block_interval/2, which would
// otherwise hammer the node far more than necessary.
const currentBlockTTL = 1 * time.Second

// Observer wraps an ethclient.Client as the current-block and
// transaction-lookup half of settlement.ChainObserver. The settlement
// index (SQL-backed) supplies the other half,
// RecentSettlementTxHashes.
type Observer struct {
	client *ethclient.Client

	mu          sync.Mutex
	cachedBlock uint64
	cachedAt    time.Time
}

// NewObserver dials rpcURL (http(s):// or ws(s)://).
func NewObserver(rpcURL string) (*Observer, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}
	return &Observer{client: client}, nil
}

// CurrentBlock returns the chain's current block height, short-TTL cached.
func (o *Observer) CurrentBlock(ctx context.Context) (uint64, error) {
	o.mu.Lock()
	if time.Since(o.cachedAt) < currentBlockTTL {
		block := o.cachedBlock
		o.mu.Unlock()
		return block, nil
	}
	o.mu.Unlock()

	number, err := o.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}

	o.mu.Lock()
	o.cachedBlock = number
	o.cachedAt = time.Now()
	o.mu.Unlock()

	return number, nil
}

// Transaction fetches a transaction by hash, returning (nil, nil) if it is
// not found — a normal outcome, e.g. a reorg between hash discovery and
// fetch, per the settlement waiter's tolerance contract.
func (o *Observer) Transaction(ctx context.Context, hash common.Hash) (*settlement.Transaction, error) {
	tx, _, err := o.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}
	return &settlement.Transaction{Hash: hash, Input: tx.Data()}, nil
}
