// Package pricefeed fans out repricing ticks to whoever is watching the
// market: websocket clients through Hub, other processes through Redis.
package pricefeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	At     time.Time       `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ticks []Tick) error
}

type discard struct{}

func (discard) Publish(context.Context, []Tick) error { return nil }

// Discard drops every tick.
var Discard Publisher = discard{}
