package exchange

import (
	"context"
	"log"
	"sync"
	"time"

	"trident/internal/model"
)

const fillPollInterval = 2 * time.Second

// Broker adapts the REST client to the trader's broker port. Placed orders
// are tracked and polled until they reach a terminal state; fills are
// delivered on the Fills channel.
type Broker struct {
	client *Client
	fillCh chan model.Fill

	mu     sync.RWMutex
	quotes map[string]model.Quote
}

// NewBroker wraps the REST client.
func NewBroker(client *Client, fillBufferSize int) *Broker {
	return &Broker{
		client: client,
		fillCh: make(chan model.Fill, fillBufferSize),
		quotes: make(map[string]model.Quote),
	}
}

// Place submits the order and starts polling for its fill.
func (b *Broker) Place(ctx context.Context, req model.OrderRequest) (string, error) {
	orderID, err := b.client.PlaceOrder(ctx, req)
	if err != nil {
		return "", err
	}

	go b.pollFill(ctx, orderID, req)
	return orderID, nil
}

// CancelOpen cancels all unfilled resting orders for the symbol.
func (b *Broker) CancelOpen(ctx context.Context, symbol string) error {
	return b.client.CancelAllOrders(ctx, symbol)
}

// Fills returns the channel of asynchronous fill confirmations.
func (b *Broker) Fills() <-chan model.Fill {
	return b.fillCh
}

// pollFill polls the order until it fills or is cancelled. Limit orders are
// cancelled exchange-side at the next bar open, which terminates the poll.
func (b *Broker) pollFill(ctx context.Context, orderID string, req model.OrderRequest) {
	ticker := time.NewTicker(fillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := b.client.GetOrderStatus(ctx, req.Symbol, orderID)
		if err != nil {
			log.Printf("[broker] order %s status poll failed: %v", orderID, err)
			continue
		}

		switch status.Status {
		case "FILLED":
			price := status.AvgPrice
			if price == 0 {
				price = req.Price
			}
			fill := model.Fill{
				OrderID:  orderID,
				Symbol:   req.Symbol,
				Side:     req.Side,
				Offset:   req.Offset,
				Qty:      status.ExecutedQty,
				Price:    price,
				Reason:   req.Reason,
				FilledAt: time.Now().UTC(),
			}
			select {
			case b.fillCh <- fill:
			case <-ctx.Done():
			}
			return
		case "CANCELED", "REJECTED", "EXPIRED":
			log.Printf("[broker] order %s terminal without fill: %s", orderID, status.Status)
			return
		}
	}
}

// RefreshQuote fetches and caches the latest book ticker for a symbol.
func (b *Broker) RefreshQuote(ctx context.Context, symbol string) error {
	q, err := b.client.BookTicker(ctx, symbol)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.quotes[symbol] = q
	b.mu.Unlock()
	return nil
}

// LastQuote returns the most recently cached quote for the symbol.
func (b *Broker) LastQuote(symbol string) (model.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[symbol]
	return q, ok
}
