package market

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultVolatility is the per-tick volatility of the random walk
	DefaultVolatility = 0.02

	// MinPrice is the hard floor; prices never fall below it
	MinPrice = 0.20
)

// Engine generates simulated prices. The random source is injected so
// tests can supply a fixed sequence; a nil source falls back to a
// time-seeded one.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a pricing engine backed by the given random source
func NewEngine(src rand.Source) *Engine {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Engine{rng: rand.New(src)}
}

// BasePrice returns a starting price in [1.00, 6.00], used to seed the
// first observation for a seed with no history
func (e *Engine) BasePrice() decimal.Decimal {
	e.mu.Lock()
	f := e.rng.Float64()
	e.mu.Unlock()
	return decimal.NewFromFloat(1 + f*5).Round(2)
}

// NextPrice computes the next price from the previous one: a symmetric
// random component scaled by volatility plus a directional kick of ±2%,
// floored at MinPrice and rounded to 2 decimal places.
func (e *Engine) NextPrice(previous decimal.Decimal, volatility float64) decimal.Decimal {
	prev, _ := previous.Float64()

	e.mu.Lock()
	trend := -1.0
	if e.rng.Float64() > 0.5 {
		trend = 1.0
	}
	change := (e.rng.Float64()-0.5)*volatility + trend*0.02
	e.mu.Unlock()

	next := prev + prev*change
	if next < MinPrice {
		next = MinPrice
	}
	return decimal.NewFromFloat(next).Round(2)
}

// Volume returns a random trade volume in [min, max], inclusive
func (e *Engine) Volume(min, max int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return min + e.rng.Intn(max-min+1)
}
