package domain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StaticProvider serves price series from memory
type StaticProvider struct {
	mu     sync.RWMutex
	series map[string]PriceSeries
}

// NewStaticProvider creates a provider preloaded with the given series
func NewStaticProvider(series ...PriceSeries) *StaticProvider {
	p := &StaticProvider{series: make(map[string]PriceSeries)}
	for _, s := range series {
		p.series[s.Symbol] = s
	}
	return p
}

// Put adds or replaces a series
func (p *StaticProvider) Put(s PriceSeries) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[s.Symbol] = s
}

// Fetch implements PriceProvider
func (p *StaticProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return PriceSeries{}, err
	}

	p.mu.RLock()
	s, ok := p.series[symbol]
	p.mu.RUnlock()
	if !ok {
		return PriceSeries{}, fmt.Errorf("no price data for %s", symbol)
	}
	return s.Between(start, end), nil
}
