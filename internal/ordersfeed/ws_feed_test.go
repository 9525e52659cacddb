package ordersfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newRelay(t *testing.T, frame string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		// keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv
}

const sampleFrame = `{
	"block": 42,
	"orders": [{
		"uid": "0x0100000000000000000000000000000000000000000000000000000000000000",
		"sellToken": "0x1111111111111111111111111111111111111111",
		"buyToken": "0x2222222222222222222222222222222222222222",
		"sellAmount": "1000",
		"buyAmount": "2000",
		"feeAmount": "1",
		"kind": "sell",
		"validTo": 123,
		"owner": "0x3333333333333333333333333333333333333333",
		"partiallyFillable": false,
		"signature": "0x",
		"appData": "0x0000000000000000000000000000000000000000000000000000000000000000",
		"class": "market"
	}],
	"prices": {
		"0x2222222222222222222222222222222222222222": "1000000000000000000"
	}
}`

func TestFeedConsumesFrameAndServesSnapshot(t *testing.T) {
	srv := newRelay(t, sampleFrame)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := New(wsURL)
	f.Start()
	defer f.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		auction, err := f.CurrentAuction(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if auction != nil {
			if auction.Block != 42 {
				t.Fatalf("expected block 42, got %d", auction.Block)
			}
			if len(auction.Orders) != 1 {
				t.Fatalf("expected 1 order, got %d", len(auction.Orders))
			}
			if len(auction.Prices) != 1 {
				t.Fatalf("expected 1 price, got %d", len(auction.Prices))
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for candidate auction")
}

func TestCurrentAuctionNilBeforeFirstFrame(t *testing.T) {
	f := New("ws://127.0.0.1:1/does-not-exist")
	auction, err := f.CurrentAuction(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auction != nil {
		t.Fatalf("expected nil auction before any frame, got %+v", auction)
	}
}

func TestFeedSurvivesMalformedFrame(t *testing.T) {
	srv := newRelay(t, `{"block": "not-a-number"}`)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := New(wsURL)
	f.Start()
	defer f.Stop()

	time.Sleep(100 * time.Millisecond)
	auction, err := f.CurrentAuction(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auction != nil {
		t.Fatalf("expected nil candidate after malformed frame, got %+v", auction)
	}
}
