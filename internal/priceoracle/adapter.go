// Package priceoracle is the concrete Price Oracle collaborator (C15 in
// SPEC_FULL.md). It polls a configured set of Chainlink-style aggregator
// feeds via eth_call and exposes the latest quotes as a domain.PriceMap.
// Grounded on the teacher's chainlink.Client: same eth_call/selector
// plumbing and decimal-valued result, adapted from a single BTC/USD feed
// with callbacks to a multi-token snapshot. It runs alongside the run loop;
// the competition orchestrator does not read it (auction prices come from
// the orders feed).
package priceoracle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/meshauction/autopilot/internal/domain"
)

const (
	latestAnswerSelector = "50d25bcd" // latestAnswer()
	decimalsSelector     = "313ce567" // decimals()

	requestTimeout = 5 * time.Second
	pollInterval   = 10 * time.Second
)

// wei1e18 is 10^18, the scale domain.PriceMap values are expressed in.
var wei1e18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Feed names one aggregator contract to poll for one token's reference
// price.
type Feed struct {
	Token        common.Address
	FeedAddress  string
}

// Adapter polls a set of Chainlink-style feeds over a JSON-RPC endpoint
// and serves the latest snapshot as a domain.PriceMap.
type Adapter struct {
	rpcURL string
	feeds  []Feed
	client *http.Client

	mu       sync.RWMutex
	decimals map[string]int32
	snapshot domain.PriceMap

	stopCh chan struct{}
}

// New builds an adapter polling rpcURL for the given feeds.
func New(rpcURL string, feeds []Feed) *Adapter {
	return &Adapter{
		rpcURL:   rpcURL,
		feeds:    feeds,
		client:   &http.Client{Timeout: requestTimeout},
		decimals: make(map[string]int32),
		snapshot: make(domain.PriceMap),
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling in the background.
func (a *Adapter) Start() {
	a.pollAll()
	go a.pollLoop()
	log.Info().Int("feeds", len(a.feeds)).Msg("price oracle adapter started")
}

// Stop halts polling.
func (a *Adapter) Stop() {
	close(a.stopCh)
}

// Snapshot returns a deep copy of the latest prices.
func (a *Adapter) Snapshot(ctx context.Context) (domain.PriceMap, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.Clone(), nil
}

func (a *Adapter) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.pollAll()
		}
	}
}

func (a *Adapter) pollAll() {
	for _, f := range a.feeds {
		price, err := a.fetchOne(f)
		if err != nil {
			log.Debug().Err(err).Str("feed", f.FeedAddress).Msg("price oracle feed fetch failed")
			continue
		}
		a.mu.Lock()
		a.snapshot[f.Token] = price
		a.mu.Unlock()
	}
}

// fetchOne calls latestAnswer() and decimals() on one feed and converts
// the decimal-valued answer into wei-per-10^18-units the auction expects.
func (a *Adapter) fetchOne(f Feed) (*big.Int, error) {
	decimals, err := a.feedDecimals(f)
	if err != nil {
		return nil, err
	}

	result, err := a.ethCall(f.FeedAddress, latestAnswerSelector)
	if err != nil {
		return nil, fmt.Errorf("latestAnswer: %w", err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("latestAnswer: short response (%d bytes)", len(result))
	}

	answer := new(big.Int).SetBytes(result[len(result)-32:])
	price := decimal.NewFromBigInt(answer, -decimals)

	return toWeiPer1e18(price), nil
}

func (a *Adapter) feedDecimals(f Feed) (int32, error) {
	a.mu.RLock()
	if d, ok := a.decimals[f.FeedAddress]; ok {
		a.mu.RUnlock()
		return d, nil
	}
	a.mu.RUnlock()

	result, err := a.ethCall(f.FeedAddress, decimalsSelector)
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("decimals: short response (%d bytes)", len(result))
	}
	d := int32(new(big.Int).SetBytes(result[len(result)-32:]).Int64())

	a.mu.Lock()
	a.decimals[f.FeedAddress] = d
	a.mu.Unlock()
	return d, nil
}

// toWeiPer1e18 converts a decimal quote into the integer wei-per-10^18
// representation domain.PriceMap carries.
func toWeiPer1e18(price decimal.Decimal) *big.Int {
	scaled := price.Mul(decimal.NewFromBigInt(wei1e18, 0))
	return scaled.BigInt()
}

func (a *Adapter) ethCall(to, selector string) ([]byte, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "eth_call",
		"params": []interface{}{
			map[string]string{"to": to, "data": "0x" + selector},
			"latest",
		},
		"id": 1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Post(a.rpcURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Result string `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("rpc error: %s", result.Error.Message)
	}
	if len(result.Result) < 2 {
		return nil, fmt.Errorf("empty rpc result")
	}
	return hex.DecodeString(result.Result[2:])
}
