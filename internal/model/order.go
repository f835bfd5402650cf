package model

import "time"

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Offset marks whether an order opens or closes a position.
type Offset string

const (
	OffsetOpen  Offset = "OPEN"
	OffsetClose Offset = "CLOSE"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderLimit  OrderType = "LIMIT"
	OrderMarket OrderType = "MARKET"
)

// OrderRequest is what the execution adapter hands to the broker.
// Quantity and price are already rounded to the exchange's step/tick size.
type OrderRequest struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Offset    Offset    `json:"offset"`
	Type      OrderType `json:"type"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"` // 0 for market orders
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Fill is a trade confirmation reported back by the broker.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Offset   Offset    `json:"offset"`
	Qty      float64   `json:"qty"`
	Price    float64   `json:"price"`
	Reason   string    `json:"reason"`
	FilledAt time.Time `json:"filled_at"`
}

// TradingRules are the exchange-declared limits for one symbol.
// Refreshed from exchange info; the execution adapter rounds against these.
type TradingRules struct {
	Symbol   string  `json:"symbol"`
	MinQty   float64 `json:"min_qty"`
	StepSize float64 `json:"step_size"`
	MinPrice float64 `json:"min_price"`
	TickSize float64 `json:"tick_size"`
}
