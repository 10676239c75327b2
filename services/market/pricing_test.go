package market

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

// fixedSource feeds a preset sequence of Int63 values, so engine draws
// are exact: rand.Float64() == val / 2^63.
type fixedSource struct {
	vals []int64
	i    int
}

func (s *fixedSource) Int63() int64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func (s *fixedSource) Seed(int64) {}

// int63For returns the Int63 value that makes rand.Float64 yield f
func int63For(f float64) int64 {
	return int64(f * (1 << 63))
}

func TestNextPriceExactSteps(t *testing.T) {
	cases := []struct {
		name     string
		draws    []float64 // first draw picks the trend, second the change
		previous float64
		want     float64
	}{
		{
			// trend -1, symmetric part zero: change = -0.02
			name:     "down step",
			draws:    []float64{0.5, 0.5},
			previous: 100,
			want:     98.00,
		},
		{
			// trend +1, change = (0.25-0.5)*0.02 + 0.02 = 0.015
			name:     "up step",
			draws:    []float64{0.75, 0.25},
			previous: 100,
			want:     101.50,
		},
		{
			// maximal down step from the floor stays at the floor
			name:     "price floor",
			draws:    []float64{0, 0},
			previous: 0.20,
			want:     0.20,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			vals := make([]int64, len(c.draws))
			for i, d := range c.draws {
				vals[i] = int63For(d)
			}
			e := NewEngine(&fixedSource{vals: vals})

			got := e.NextPrice(decimal.NewFromFloat(c.previous), DefaultVolatility)
			if want := decimal.NewFromFloat(c.want); !got.Equal(want) {
				t.Errorf("NextPrice(%v) = %s; want %s", c.previous, got, want)
			}
		})
	}
}

func TestNextPriceFloorAndRounding(t *testing.T) {
	e := NewEngine(rand.NewSource(1))
	floor := decimal.NewFromFloat(MinPrice)

	price := decimal.NewFromFloat(0.21)
	for i := 0; i < 2000; i++ {
		price = e.NextPrice(price, DefaultVolatility)
		if price.LessThan(floor) {
			t.Fatalf("iteration %d: price %s below floor %s", i, price, floor)
		}
		if !price.Equal(price.Round(2)) {
			t.Fatalf("iteration %d: price %s not rounded to 2 decimal places", i, price)
		}
	}
}

func TestBasePriceExact(t *testing.T) {
	e := NewEngine(&fixedSource{vals: []int64{int63For(0.5)}})
	got := e.BasePrice()
	if want := decimal.NewFromFloat(3.50); !got.Equal(want) {
		t.Errorf("BasePrice() = %s; want %s", got, want)
	}
}

func TestBasePriceRange(t *testing.T) {
	e := NewEngine(rand.NewSource(2))
	lo := decimal.NewFromInt(1)
	hi := decimal.NewFromInt(6)

	for i := 0; i < 2000; i++ {
		p := e.BasePrice()
		if p.LessThan(lo) || p.GreaterThan(hi) {
			t.Fatalf("BasePrice() = %s; want within [1.00, 6.00]", p)
		}
		if !p.Equal(p.Round(2)) {
			t.Fatalf("BasePrice() = %s; not rounded to 2 decimal places", p)
		}
	}
}

func TestVolumeBounds(t *testing.T) {
	e := NewEngine(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		v := e.Volume(500, 10500)
		if v < 500 || v > 10500 {
			t.Fatalf("Volume(500, 10500) = %d; out of bounds", v)
		}
	}
	if v := e.Volume(5, 5); v != 5 {
		t.Errorf("Volume(5, 5) = %d; want 5", v)
	}
}
