// Package domain holds the auction's core value types: orders, auctions,
// and the price map solvers compete over. Nothing here talks to a network
// or a database — that is the collaborators' job.
package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderKind says which side of the trade the order fixes.
type OrderKind string

const (
	KindBuy  OrderKind = "buy"
	KindSell OrderKind = "sell"
)

// OrderClassKind tags an order's role in the auction. Liquidity orders are
// not user intents and cannot stand alone (see Auction.AllLiquidity).
type OrderClassKind string

const (
	ClassMarket    OrderClassKind = "market"
	ClassLiquidity OrderClassKind = "liquidity"
	ClassLimit     OrderClassKind = "limit"
)

// OrderClass carries the optional surplus fee that only Limit orders have.
type OrderClass struct {
	Kind        OrderClassKind
	SurplusFee  *big.Int // non-nil only when Kind == ClassLimit
}

// Order is an immutable value object snapshotted into an auction.
type Order struct {
	UID               [32]byte
	SellToken         common.Address
	BuyToken          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	FeeAmount         *big.Int
	Kind              OrderKind
	ValidTo           uint32
	Owner             common.Address
	Receiver          *common.Address
	PartiallyFillable bool
	Signature         []byte
	AppData           [32]byte
	Class             OrderClass
}

// Validate re-checks the order invariants the core depends on: only a
// Limit order may carry a surplus fee, and the order kind is buy or sell.
// Everything else about order semantics is upstream's responsibility.
func (o Order) Validate() error {
	if o.Class.Kind != ClassLimit && o.Class.SurplusFee != nil {
		return fmt.Errorf("order %x: surplus fee set on non-limit class %q", o.UID, o.Class.Kind)
	}
	if o.Kind != KindBuy && o.Kind != KindSell {
		return fmt.Errorf("order %x: unknown kind %q", o.UID, o.Kind)
	}
	return nil
}
