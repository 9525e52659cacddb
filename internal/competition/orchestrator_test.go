package competition

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/meshauction/autopilot/internal/domain"
	"github.com/meshauction/autopilot/internal/driverapi"
)

type fakeDriver struct {
	resp  *driverapi.SolveResponse
	err   error
	delay time.Duration
}

func (f *fakeDriver) Solve(ctx context.Context, req *driverapi.SolveRequest) (*driverapi.SolveResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func marketAuction() *domain.Auction {
	return &domain.Auction{
		ID: 42,
		Orders: []domain.Order{
			{UID: [32]byte{1}, Class: domain.OrderClass{Kind: domain.ClassMarket}, Kind: domain.KindSell},
		},
	}
}

func TestHappyPathWinnerHasHighestScore(t *testing.T) {
	drivers := []Driver{
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "1", Score: 1.5}},
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "2", Score: 2.5}},
	}
	o := New(drivers, DefaultSolveBudget)
	result, ok := o.Run(context.Background(), marketAuction())
	if !ok {
		t.Fatalf("expected a winner")
	}
	if result.DriverIndex != 1 || result.Response.ID != "2" {
		t.Fatalf("unexpected winner: %+v", result)
	}
}

func TestPartialFailureWinnerIsSurvivor(t *testing.T) {
	drivers := []Driver{
		&fakeDriver{err: context.DeadlineExceeded},
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "2", Score: 0.1}},
	}
	o := New(drivers, DefaultSolveBudget)
	result, ok := o.Run(context.Background(), marketAuction())
	if !ok || result.DriverIndex != 1 {
		t.Fatalf("expected driver 1 to win, got %+v ok=%v", result, ok)
	}
}

func TestAllLiquiditySkipsCompetition(t *testing.T) {
	drivers := []Driver{
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "1", Score: 1}},
	}
	auction := &domain.Auction{
		Orders: []domain.Order{
			{Class: domain.OrderClass{Kind: domain.ClassLiquidity}},
			{Class: domain.OrderClass{Kind: domain.ClassLiquidity}},
		},
	}
	o := New(drivers, DefaultSolveBudget)
	_, ok := o.Run(context.Background(), auction)
	if ok {
		t.Fatalf("expected no winner for all-liquidity auction")
	}
}

func TestZeroDriversBehavesLikeAllErrors(t *testing.T) {
	o := New(nil, DefaultSolveBudget)
	_, ok := o.Run(context.Background(), marketAuction())
	if ok {
		t.Fatalf("expected no winner with zero drivers")
	}

	o2 := New([]Driver{&fakeDriver{err: context.DeadlineExceeded}, &fakeDriver{err: context.DeadlineExceeded}}, DefaultSolveBudget)
	_, ok2 := o2.Run(context.Background(), marketAuction())
	if ok2 {
		t.Fatalf("expected no winner when all drivers error")
	}
}

func TestNaNScoreRejected(t *testing.T) {
	drivers := []Driver{
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "1", Score: math.NaN()}},
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "2", Score: -1.0}},
	}
	o := New(drivers, DefaultSolveBudget)
	result, ok := o.Run(context.Background(), marketAuction())
	if !ok || result.DriverIndex != 1 {
		t.Fatalf("expected driver 1 (finite score) to win, got %+v ok=%v", result, ok)
	}
}

func TestInfiniteScoresOrderNormally(t *testing.T) {
	drivers := []Driver{
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "1", Score: math.Inf(-1)}},
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "2", Score: math.Inf(1)}},
	}
	o := New(drivers, DefaultSolveBudget)
	result, ok := o.Run(context.Background(), marketAuction())
	if !ok || result.DriverIndex != 1 {
		t.Fatalf("expected +Inf driver to win, got %+v ok=%v", result, ok)
	}
}

func TestTieBreakFairnessOverManyTrials(t *testing.T) {
	wins := [2]int{}
	const trials = 1000
	for i := 0; i < trials; i++ {
		drivers := []Driver{
			&fakeDriver{resp: &driverapi.SolveResponse{ID: "1", Score: 1.0}},
			&fakeDriver{resp: &driverapi.SolveResponse{ID: "2", Score: 1.0}},
		}
		o := &Orchestrator{Drivers: drivers, Rand: rand.New(rand.NewSource(int64(i))), SolveBudget: DefaultSolveBudget}
		result, ok := o.Run(context.Background(), marketAuction())
		if !ok {
			t.Fatalf("expected a winner")
		}
		wins[result.DriverIndex]++
	}
	// For a fair coin at n=1000 the standard deviation is about 15.8 wins,
	// so +/- 50 around 500 is a band of roughly 3.2 standard deviations
	// (a 95% interval would be about +/- 31).
	for i, w := range wins {
		if w < 450 || w > 550 {
			t.Fatalf("driver %d won %d/%d times, outside fair tie-break band", i, w, trials)
		}
	}
}

func TestSlowDriverDoesNotDelayOthers(t *testing.T) {
	drivers := []Driver{
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "1", Score: 1}, delay: DefaultSolveBudget + time.Second},
		&fakeDriver{resp: &driverapi.SolveResponse{ID: "2", Score: 2}},
	}
	o := &Orchestrator{Drivers: drivers, Rand: rand.New(rand.NewSource(1)), SolveBudget: DefaultSolveBudget}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSolveBudget+2*time.Second)
	defer cancel()
	start := time.Now()
	result, ok := o.Run(ctx, marketAuction())
	elapsed := time.Since(start)
	if !ok || result.DriverIndex != 1 {
		t.Fatalf("expected driver 1 to win after the slow driver times out, got %+v ok=%v", result, ok)
	}
	if elapsed > DefaultSolveBudget+time.Second {
		t.Fatalf("took too long: %v", elapsed)
	}
}
