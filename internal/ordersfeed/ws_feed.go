// Package ordersfeed is the concrete Solvable-Orders Cache collaborator
// (C2 in SPEC_FULL.md): it subscribes to an upstream intent-relay over a
// WebSocket and maintains the current candidate auction snapshot in
// memory.
package ordersfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/meshauction/autopilot/internal/domain"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// wireOrder is the relay's JSON order shape.
type wireOrder struct {
	UID               string `json:"uid"`
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	ValidTo           uint32 `json:"validTo"`
	Owner             string `json:"owner"`
	Receiver          string `json:"receiver,omitempty"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	Signature         string `json:"signature"`
	AppData           string `json:"appData"`
	Class             string `json:"class"`
	SurplusFee        string `json:"surplusFee,omitempty"`
}

// wireFrame is the relay's "here is the current candidate auction" push.
type wireFrame struct {
	Block  uint64            `json:"block"`
	Orders []wireOrder       `json:"orders"`
	Prices map[string]string `json:"prices"`
}

// Feed maintains the current candidate auction by consuming frames pushed
// over a WebSocket from an upstream order-intent relay.
type Feed struct {
	wsURL  string
	stopCh chan struct{}

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	candidate *domain.Auction
}

// New builds a feed bound to wsURL. Call Start to begin consuming.
func New(wsURL string) *Feed {
	return &Feed{wsURL: wsURL, stopCh: make(chan struct{})}
}

// Start begins the reconnect loop in the background.
func (f *Feed) Start() {
	go f.connectionLoop()
	log.Info().Str("url", f.wsURL).Msg("orders feed started")
}

// Stop tears down the connection.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.stopCh:
		return // already stopped
	default:
	}
	close(f.stopCh)
	if f.conn != nil {
		f.conn.Close()
	}
}

// CurrentAuction returns a deep, immutable snapshot of the candidate
// auction, satisfying runloop.OrdersCache. A nil return means nothing has
// been received yet this run.
func (f *Feed) CurrentAuction(ctx context.Context) (*domain.Auction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.candidate.Clone(), nil
}

func (f *Feed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("orders feed connection failed, retrying")
			time.Sleep(reconnectDelay)
			continue
		}

		f.readLoop()
		time.Sleep(reconnectDelay)
	}
}

func (f *Feed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	log.Info().Msg("orders feed websocket connected")
	go f.pingLoop(conn)
	return nil
}

func (f *Feed) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			same := f.conn == conn && f.connected
			f.mu.RUnlock()
			if !same {
				return
			}
			conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (f *Feed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("orders feed read error")
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return
		}

		auction, err := decodeFrame(data)
		if err != nil {
			log.Warn().Err(err).Msg("orders feed decode error, dropping frame")
			continue
		}

		f.mu.Lock()
		f.candidate = auction
		f.mu.Unlock()
	}
}

func decodeFrame(data []byte) (*domain.Auction, error) {
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	orders := make([]domain.Order, 0, len(frame.Orders))
	for _, wo := range frame.Orders {
		order, err := decodeOrder(wo)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	prices := make(domain.PriceMap, len(frame.Prices))
	for token, price := range frame.Prices {
		value, ok := new(big.Int).SetString(price, 10)
		if !ok {
			return nil, fmt.Errorf("decode price for %s: invalid integer %q", token, price)
		}
		prices[common.HexToAddress(token)] = value
	}

	return &domain.Auction{Orders: orders, Prices: prices, Block: frame.Block}, nil
}

func decodeOrder(wo wireOrder) (domain.Order, error) {
	sellAmount, ok1 := new(big.Int).SetString(wo.SellAmount, 10)
	buyAmount, ok2 := new(big.Int).SetString(wo.BuyAmount, 10)
	feeAmount, ok3 := new(big.Int).SetString(wo.FeeAmount, 10)
	if !ok1 || !ok2 || !ok3 {
		return domain.Order{}, fmt.Errorf("order %s: invalid amount", wo.UID)
	}

	class := domain.OrderClass{Kind: domain.OrderClassKind(wo.Class)}
	if wo.Class == string(domain.ClassLimit) && wo.SurplusFee != "" {
		surplusFee, ok := new(big.Int).SetString(wo.SurplusFee, 10)
		if !ok {
			return domain.Order{}, fmt.Errorf("order %s: invalid surplus fee", wo.UID)
		}
		class.SurplusFee = surplusFee
	}

	var receiver *common.Address
	if wo.Receiver != "" {
		addr := common.HexToAddress(wo.Receiver)
		receiver = &addr
	}

	order := domain.Order{
		UID:               common.HexToHash(wo.UID),
		SellToken:         common.HexToAddress(wo.SellToken),
		BuyToken:          common.HexToAddress(wo.BuyToken),
		SellAmount:        sellAmount,
		BuyAmount:         buyAmount,
		FeeAmount:         feeAmount,
		Kind:              domain.OrderKind(wo.Kind),
		ValidTo:           wo.ValidTo,
		Owner:             common.HexToAddress(wo.Owner),
		Receiver:          receiver,
		PartiallyFillable: wo.PartiallyFillable,
		Signature:         common.FromHex(wo.Signature),
		AppData:           common.HexToHash(wo.AppData),
		Class:             class,
	}
	if err := order.Validate(); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
