// Package chain provides the two concrete halves of the Chain Observer
// collaborator: a raw-SQL index of settlement-event transaction hashes
// (SettlementIndex), and an ethclient-backed view of current block height
// and transaction lookup (Observer).
package chain

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SETTLEMENT INDEX - tx hash lookup for the settlement waiter
// ═══════════════════════════════════════════════════════════════════════════════

// SettlementIndex answers "which transactions emitted a settlement event
// in this block range", backed by a table an upstream event indexer keeps
// current. The core only reads it.
type SettlementIndex struct {
	db *sql.DB
}

// NewSettlementIndex opens a Postgres connection and ensures the index
// table exists.
func NewSettlementIndex(dsn string) (*SettlementIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settlement index: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping settlement index: %w", err)
	}

	idx := &SettlementIndex{db: db}
	if err := idx.migrate(); err != nil {
		return nil, err
	}
	log.Info().Msg("settlement index connected")
	return idx, nil
}

func (i *SettlementIndex) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settlement_events (
		tx_hash TEXT PRIMARY KEY,
		block_number BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_settlement_events_block ON settlement_events(block_number);
	`
	_, err := i.db.Exec(schema)
	return err
}

// RecordEvent indexes a settlement-contract call observed at blockNumber.
// Called by the upstream event indexer (outside the core's scope); kept
// here because it shares the table the waiter reads.
func (i *SettlementIndex) RecordEvent(ctx context.Context, txHash common.Hash, blockNumber uint64) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO settlement_events (tx_hash, block_number)
		VALUES ($1, $2)
		ON CONFLICT (tx_hash) DO NOTHING
	`, txHash.Hex(), blockNumber)
	return err
}

// RecentSettlementTxHashes returns the settlement-event transaction hashes
// in [fromBlock, toBlock], satisfying settlement.ChainObserver.
func (i *SettlementIndex) RecentSettlementTxHashes(ctx context.Context, fromBlock, toBlock uint64) ([]common.Hash, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT tx_hash FROM settlement_events
		WHERE block_number BETWEEN $1 AND $2
	`, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("query settlement events: %w", err)
	}
	defer rows.Close()

	var hashes []common.Hash
	for rows.Next() {
		var hexHash string
		if err := rows.Scan(&hexHash); err != nil {
			return nil, fmt.Errorf("scan settlement event: %w", err)
		}
		hashes = append(hashes, common.HexToHash(hexHash))
	}
	return hashes, rows.Err()
}

// Close closes the underlying connection pool.
func (i *SettlementIndex) Close() error {
	return i.db.Close()
}
