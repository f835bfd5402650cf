package execution

import (
	"context"
	"errors"
	"math"
	"testing"

	"trident/internal/model"
	"trident/internal/strategy"
)

func btcRules() model.TradingRules {
	return model.TradingRules{
		Symbol:   "BTCUSDT",
		MinQty:   0.0001,
		StepSize: 0.00001,
		MinPrice: 0.01,
		TickSize: 0.01,
	}
}

// staticQuotes serves a fixed quote (or none).
type staticQuotes struct {
	quote model.Quote
	ok    bool
}

func (s staticQuotes) LastQuote(symbol string) (model.Quote, bool) {
	return s.quote, s.ok
}

// ────────────────────────────────────────────────────────────
// Rounding
// ────────────────────────────────────────────────────────────

func TestRoundQuantity_TruncatesToStep(t *testing.T) {
	rules := btcRules()

	tests := []struct {
		in   float64
		want float64
	}{
		{0.123456, 0.12345}, // truncated, never rounded up
		{0.12345, 0.12345},  // exact multiple unchanged
		{0.01, 0.01},
	}

	for _, tt := range tests {
		got, err := RoundQuantity(tt.in, rules)
		if err != nil {
			t.Fatalf("RoundQuantity(%v): %v", tt.in, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("RoundQuantity(%v) = %.8f, want %.8f", tt.in, got, tt.want)
		}
	}
}

func TestRoundQuantity_RejectsBelowMin(t *testing.T) {
	rules := btcRules()

	// 0.00005 truncates to 0.00005, below MinQty 0.0001
	if _, err := RoundQuantity(0.00005, rules); !errors.Is(err, ErrBelowMinQty) {
		t.Errorf("expected ErrBelowMinQty, got %v", err)
	}

	// Zero after truncation
	if _, err := RoundQuantity(0.000001, model.TradingRules{StepSize: 0.00001, MinQty: 0.0001}); !errors.Is(err, ErrBelowMinQty) {
		t.Errorf("expected ErrBelowMinQty for dust, got %v", err)
	}
}

func TestRoundQuantity_Idempotent(t *testing.T) {
	rules := btcRules()

	once, err := RoundQuantity(0.123456, rules)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := RoundQuantity(once, rules)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("rounding not idempotent: %.8f != %.8f", once, twice)
	}
}

func TestRoundPrice_TruncatesToTick(t *testing.T) {
	rules := btcRules()

	tests := []struct {
		in   float64
		want float64
	}{
		{50000.127, 50000.12},
		{50000.12, 50000.12},
		{50000.999, 50000.99},
	}
	for _, tt := range tests {
		if got := RoundPrice(tt.in, rules); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RoundPrice(%v) = %.2f, want %.2f", tt.in, got, tt.want)
		}
	}
}

func TestRoundPrice_NoTickSizePassthrough(t *testing.T) {
	if got := RoundPrice(123.456, model.TradingRules{}); got != 123.456 {
		t.Errorf("RoundPrice without tick size = %v, want passthrough", got)
	}
}

// ────────────────────────────────────────────────────────────
// Order building
// ────────────────────────────────────────────────────────────

func TestBuildOrder_BuyLimitBoundsSlippage(t *testing.T) {
	quotes := staticQuotes{quote: model.Quote{Symbol: "BTCUSDT", Bid: 49999, Ask: 50000}, ok: true}
	ex := NewExecutor(NewPaperBroker(16), quotes, btcRules(), 0.001, 16)

	req, err := ex.BuildOrder(strategy.Signal{
		StrategyName: "Triple_Signal", Symbol: "BTCUSDT",
		Side: model.SideBuy, Offset: model.OffsetOpen, Qty: 0.01,
	})
	if err != nil {
		t.Fatal(err)
	}

	if req.Type != model.OrderLimit {
		t.Fatalf("expected limit order with live quote, got %s", req.Type)
	}
	// ask*(1+0.001) = 50050, tick-truncated
	if math.Abs(req.Price-50050.0) > 0.01 {
		t.Errorf("buy limit = %.2f, want 50050.00", req.Price)
	}
}

func TestBuildOrder_SellLimitBoundsSlippage(t *testing.T) {
	quotes := staticQuotes{quote: model.Quote{Symbol: "BTCUSDT", Bid: 50000, Ask: 50001}, ok: true}
	ex := NewExecutor(NewPaperBroker(16), quotes, btcRules(), 0.001, 16)

	req, err := ex.BuildOrder(strategy.Signal{
		Symbol: "BTCUSDT", Side: model.SideSell, Offset: model.OffsetClose, Qty: 0.01,
	})
	if err != nil {
		t.Fatal(err)
	}
	// bid*(1-0.001) = 49950
	if math.Abs(req.Price-49950.0) > 0.01 {
		t.Errorf("sell limit = %.2f, want 49950.00", req.Price)
	}
}

func TestBuildOrder_MarketFallbackWithoutQuote(t *testing.T) {
	ex := NewExecutor(NewPaperBroker(16), staticQuotes{}, btcRules(), 0.001, 16)

	req, err := ex.BuildOrder(strategy.Signal{
		Symbol: "BTCUSDT", Side: model.SideBuy, Offset: model.OffsetOpen, Qty: 0.01,
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != model.OrderMarket {
		t.Errorf("expected market fallback without quote, got %s", req.Type)
	}
	if req.Price != 0 {
		t.Errorf("market order price should be 0, got %.2f", req.Price)
	}
}

func TestBuildOrder_RejectsDust(t *testing.T) {
	ex := NewExecutor(NewPaperBroker(16), staticQuotes{}, btcRules(), 0.001, 16)

	_, err := ex.BuildOrder(strategy.Signal{
		Symbol: "BTCUSDT", Side: model.SideBuy, Offset: model.OffsetOpen, Qty: 0.00005,
	})
	if !errors.Is(err, ErrBelowMinQty) {
		t.Errorf("expected ErrBelowMinQty, got %v", err)
	}
}

// ────────────────────────────────────────────────────────────
// Paper broker
// ────────────────────────────────────────────────────────────

func TestPaperBroker_LimitFillsAtLimitPrice(t *testing.T) {
	broker := NewPaperBroker(16)

	id, err := broker.Place(context.Background(), model.OrderRequest{
		Symbol: "BTCUSDT", Side: model.SideBuy, Offset: model.OffsetOpen,
		Type: model.OrderLimit, Qty: 0.01, Price: 50050,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty order id")
	}

	fill := <-broker.Fills()
	if fill.Price != 50050 {
		t.Errorf("limit fill price = %.2f, want 50050", fill.Price)
	}
	if fill.Side != model.SideBuy || fill.Offset != model.OffsetOpen {
		t.Errorf("fill side/offset mismatch: %s %s", fill.Side, fill.Offset)
	}
}

func TestPaperBroker_MarketFillsAtMark(t *testing.T) {
	broker := NewPaperBroker(16)
	broker.SetMarkPrice(50123.45)

	if _, err := broker.Place(context.Background(), model.OrderRequest{
		Symbol: "BTCUSDT", Side: model.SideSell, Offset: model.OffsetClose,
		Type: model.OrderMarket, Qty: 0.01,
	}); err != nil {
		t.Fatal(err)
	}

	fill := <-broker.Fills()
	if fill.Price != 50123.45 {
		t.Errorf("market fill price = %.2f, want mark 50123.45", fill.Price)
	}
}
