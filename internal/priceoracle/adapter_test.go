package priceoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// fakeRPC serves decimals()=8, latestAnswer()=300000000000 (i.e. 3000.00
// at 8 decimals) for any eth_call, mimicking a Chainlink aggregator.
func fakeRPC(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []json.RawMessage
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		var call struct {
			Data string `json:"data"`
		}
		if len(req.Params) > 0 {
			json.Unmarshal(req.Params[0], &call)
		}

		var hexResult string
		switch call.Data {
		case "0x313ce567": // decimals()
			hexResult = fmt.Sprintf("0x%064x", 8)
		case "0x50d25bcd": // latestAnswer()
			hexResult = fmt.Sprintf("0x%064x", 300000000000)
		default:
			hexResult = "0x" + fmt.Sprintf("%064x", 0)
		}

		resp := map[string]string{"result": hexResult}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAdapterSnapshotConvertsToWeiPer1e18(t *testing.T) {
	srv := fakeRPC(t)
	defer srv.Close()

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a := New(srv.URL, []Feed{{Token: token, FeedAddress: "0xfeed000000000000000000000000000000dead"}})
	a.pollAll()

	snap, err := a.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	price, ok := snap[token]
	if !ok {
		t.Fatalf("expected a price for token, got none")
	}

	// 3000 * 10^18
	want := new(big.Int).Mul(big.NewInt(3000), wei1e18)
	if price.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, price)
	}
}

func TestSnapshotIsEmptyBeforeFirstPoll(t *testing.T) {
	a := New("http://127.0.0.1:1", nil)
	snap, err := a.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap)
	}
}

func TestPollAllSkipsFailingFeedWithoutPanicking(t *testing.T) {
	a := New("http://127.0.0.1:1", []Feed{{
		Token:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		FeedAddress: "0xdead",
	}})
	done := make(chan struct{})
	go func() {
		a.pollAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pollAll hung on unreachable rpc")
	}
}
