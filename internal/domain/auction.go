package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AuctionID is assigned by the auction store on promotion. It is monotonic:
// for any two successive auctions, id2 > id1.
type AuctionID uint64

// Tag derives the 8-byte settlement-correlation tag from the auction id, the
// big-endian encoding spec.md calls out as sufficient.
func (id AuctionID) Tag() []byte {
	tag := make([]byte, 8)
	v := uint64(id)
	for i := 7; i >= 0; i-- {
		tag[i] = byte(v)
		v >>= 8
	}
	return tag
}

// PriceMap is a token address to reference price lookup: wei of the
// native token per 10^18 units of the token. Keys are unique; order is
// irrelevant.
type PriceMap map[common.Address]*big.Int

// Clone returns a deep copy so a snapshot handed out by the orders cache
// can't be mutated by whoever holds it.
func (p PriceMap) Clone() PriceMap {
	out := make(PriceMap, len(p))
	for token, price := range p {
		out[token] = new(big.Int).Set(price)
	}
	return out
}

// Auction is an immutable snapshot of solvable orders taken at promotion
// time. Once frozen it is never mutated for the remainder of the tick.
type Auction struct {
	ID     AuctionID // zero until promoted by the auction store
	Orders []Order
	Prices PriceMap
	Block  uint64
}

// Clone deep-copies the auction so the orchestrator can't be affected by a
// concurrent update to the orders-cache candidate.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	cloneInt := func(v *big.Int) *big.Int {
		if v == nil {
			return nil
		}
		return new(big.Int).Set(v)
	}
	orders := make([]Order, len(a.Orders))
	for i, o := range a.Orders {
		o.SellAmount = cloneInt(o.SellAmount)
		o.BuyAmount = cloneInt(o.BuyAmount)
		o.FeeAmount = cloneInt(o.FeeAmount)
		o.Class.SurplusFee = cloneInt(o.Class.SurplusFee)
		if o.Receiver != nil {
			receiver := *o.Receiver
			o.Receiver = &receiver
		}
		o.Signature = append([]byte(nil), o.Signature...)
		orders[i] = o
	}
	return &Auction{
		ID:     a.ID,
		Orders: orders,
		Prices: a.Prices.Clone(),
		Block:  a.Block,
	}
}

// AllLiquidity reports whether every order in the auction is Liquidity
// class. Such an auction is not solvable: liquidity orders are not user
// intents and cannot stand alone (spec.md §4.2).
func (a *Auction) AllLiquidity() bool {
	if len(a.Orders) == 0 {
		return true
	}
	for _, o := range a.Orders {
		if o.Class.Kind != ClassLiquidity {
			return false
		}
	}
	return true
}
