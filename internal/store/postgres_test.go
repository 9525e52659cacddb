package store

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meshauction/autopilot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auctions.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func sampleAuction() *domain.Auction {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	return &domain.Auction{
		Block: 100,
		Orders: []domain.Order{
			{
				UID:        [32]byte{1},
				SellToken:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
				BuyToken:   token,
				SellAmount: big.NewInt(1000),
				BuyAmount:  big.NewInt(2000),
				FeeAmount:  big.NewInt(1),
				Kind:       domain.KindSell,
				Owner:      common.HexToAddress("0x3333333333333333333333333333333333333333"),
				Class:      domain.OrderClass{Kind: domain.ClassMarket},
			},
		},
		Prices: domain.PriceMap{token: big.NewInt(1_000_000_000_000_000_000)},
	}
}

func TestReplaceCurrentAuctionAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.ReplaceCurrentAuction(ctx, sampleAuction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := s.ReplaceCurrentAuction(ctx, sampleAuction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !(id2 > id1) {
		t.Fatalf("expected id2 > id1, got id1=%d id2=%d", id1, id2)
	}
}
