// Package driverapi defines the wire contract between the autopilot core
// and an external solver driver process, and the HTTP client that speaks
// it.
package driverapi

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meshauction/autopilot/internal/domain"
)

// Class is the wire form of domain.OrderClassKind.
type Class string

const (
	ClassMarket    Class = "market"
	ClassLiquidity Class = "liquidity"
	ClassLimit     Class = "limit"
)

// Order is the wire projection of a domain.Order. Executed and reward
// default to zero; pre-interactions default to empty — the driver fills
// those in as part of its solution, the autopilot never does.
type Order struct {
	UID               common.Hash    `json:"uid"`
	SellToken         common.Address `json:"sellToken"`
	BuyToken          common.Address `json:"buyToken"`
	SellAmount        *big.Int       `json:"sellAmount"`
	BuyAmount         *big.Int       `json:"buyAmount"`
	FeeAmount         *big.Int       `json:"feeAmount"`
	Kind              domain.OrderKind `json:"kind"`
	ValidTo           uint32         `json:"validTo"`
	Owner             common.Address `json:"owner"`
	Receiver          *common.Address `json:"receiver,omitempty"`
	PartiallyFillable bool           `json:"partiallyFillable"`
	Signature         []byte         `json:"signature"`
	AppData           common.Hash    `json:"appData"`
	Class             Class          `json:"class"`
	SurplusFee        *big.Int       `json:"surplusFee,omitempty"`
	Executed          *big.Int       `json:"executed,omitempty"`
	Reward            float64        `json:"reward"`
	PreInteractions   []Interaction  `json:"preInteractions"`
}

// Interaction is a pre-settlement contract call a driver may need to run.
// The core never constructs one itself, but the wire shape must round-trip.
type Interaction struct {
	Target   common.Address `json:"target"`
	CallData []byte         `json:"callData"`
	Value    *big.Int       `json:"value"`
}

// OrderFromDomain projects a domain.Order onto the wire schema, flattening
// the class and carrying surplus_fee iff the order is a Limit order.
func OrderFromDomain(o domain.Order) Order {
	class, surplusFee := ClassMarket, (*big.Int)(nil)
	switch o.Class.Kind {
	case domain.ClassLiquidity:
		class = ClassLiquidity
	case domain.ClassLimit:
		class = ClassLimit
		surplusFee = o.Class.SurplusFee
	}
	return Order{
		UID:               o.UID,
		SellToken:         o.SellToken,
		BuyToken:          o.BuyToken,
		SellAmount:        o.SellAmount,
		BuyAmount:         o.BuyAmount,
		FeeAmount:         o.FeeAmount,
		Kind:              o.Kind,
		ValidTo:           o.ValidTo,
		Owner:             o.Owner,
		Receiver:          o.Receiver,
		PartiallyFillable: o.PartiallyFillable,
		Signature:         o.Signature,
		AppData:           o.AppData,
		Class:             class,
		SurplusFee:        surplusFee,
		Executed:          big.NewInt(0),
		Reward:            0,
		PreInteractions:   []Interaction{},
	}
}

// SolveRequest is fanned out verbatim to every driver in a tick.
type SolveRequest struct {
	AuctionID domain.AuctionID          `json:"auctionId"`
	Orders    []Order                   `json:"orders"`
	Prices    map[common.Address]*big.Int `json:"prices"`
	Deadline  time.Time                 `json:"deadline"`
}

// SolveResponse is a driver's proposed solution for the auction. Score
// ordering is higher-is-better; NaN is rejected by the orchestrator.
type SolveResponse struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ExecuteRequest instructs the winning driver to broadcast its solution.
// TransactionIdentifier is deterministically derived from AuctionID so the
// settlement waiter can recognize it without side-channel state.
type ExecuteRequest struct {
	AuctionID              domain.AuctionID `json:"auctionId"`
	TransactionIdentifier  []byte           `json:"transactionIdentifier"`
}

// ExecuteResponse is an acknowledgement only; the core places no content
// contract on it beyond "received".
type ExecuteResponse struct {
	Received bool `json:"received"`
}
