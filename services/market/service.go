package market

import (
	"errors"
	"fmt"
	"time"

	"seedmart_backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrSeedNotFound is returned when the requested seed does not exist
	ErrSeedNotFound = errors.New("seed not found")

	// ErrNoPriceHistory is returned when a seed has no observations yet
	ErrNoPriceHistory = errors.New("no price history")
)

// timeframeDays maps the supported lookback windows to days.
// Unknown values fall back to one week.
var timeframeDays = map[string]int{
	"1d": 1,
	"1w": 7,
	"1m": 30,
	"3m": 90,
	"1y": 365,
}

// unitsPerSeed is the fixed unit count assumed when computing market cap
const unitsPerSeed = 1000

// SeedSummary is one seed's entry in the market summary
type SeedSummary struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Species       string          `json:"species"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	PreviousPrice decimal.Decimal `json:"previousPrice"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volume        int             `json:"volume"`
	Description   string          `json:"description"`
}

// MarketStats aggregates the whole market
type MarketStats struct {
	TotalVolume int             `json:"totalVolume"`
	MarketCap   decimal.Decimal `json:"marketCap"`
	SeedCount   int             `json:"seedCount"`
}

// Summary is the full market summary response
type Summary struct {
	Seeds       []SeedSummary `json:"seeds"`
	MarketStats MarketStats   `json:"marketStats"`
}

// Service orchestrates reads and writes of the price observation log.
// The clock is injected so tests can pin time.
//
// Seed.Price is the catalog price owned by the CRUD handlers; the
// observation log is the market price. Scheduled ticks append to the
// log only and deliberately leave Seed.Price alone, so the two diverge
// over time.
type Service struct {
	db     *gorm.DB
	engine *Engine
	now    func() time.Time
}

// NewService creates a market service over the given database
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:     db,
		engine: NewEngine(nil),
		now:    time.Now,
	}
}

// UpdateAllPrices appends one new observation per seed: a random-walk
// step from the latest observation, or a fresh base price for seeds
// with no history. All rows are written in a single batched insert.
// Returns the number of seeds updated.
func (s *Service) UpdateAllPrices() (int, error) {
	var seeds []models.Seed
	if err := s.db.Find(&seeds).Error; err != nil {
		return 0, fmt.Errorf("failed to load seeds: %w", err)
	}

	now := s.now()
	batch := make([]models.SeedPrice, 0, len(seeds))

	for _, seed := range seeds {
		var latest models.SeedPrice
		err := s.db.Where("seed_id = ?", seed.ID).
			Order("recorded_at DESC").
			First(&latest).Error

		var price decimal.Decimal
		switch {
		case err == nil:
			price = s.engine.NextPrice(latest.Price, DefaultVolatility)
		case errors.Is(err, gorm.ErrRecordNotFound):
			price = s.engine.BasePrice()
		default:
			return 0, fmt.Errorf("failed to load latest price for seed %d: %w", seed.ID, err)
		}

		batch = append(batch, models.SeedPrice{
			SeedID:     seed.ID,
			Price:      price,
			Volume:     s.engine.Volume(500, 10500),
			RecordedAt: now,
		})
	}

	if len(batch) == 0 {
		return 0, nil
	}
	if err := s.db.Create(&batch).Error; err != nil {
		return 0, fmt.Errorf("failed to insert price observations: %w", err)
	}
	return len(batch), nil
}

// PriceHistory returns the observations for a seed within the given
// timeframe, oldest first. A seed with no observations in range gets a
// single synthesized observation which is persisted, so repeated calls
// converge instead of returning nothing.
func (s *Service) PriceHistory(seedID uint, timeframe string) ([]models.SeedPrice, error) {
	days, ok := timeframeDays[timeframe]
	if !ok {
		days = 7
	}

	var seed models.Seed
	if err := s.db.First(&seed, seedID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeedNotFound
		}
		return nil, fmt.Errorf("failed to load seed %d: %w", seedID, err)
	}

	cutoff := s.now().AddDate(0, 0, -days)

	var prices []models.SeedPrice
	err := s.db.Where("seed_id = ? AND recorded_at >= ?", seedID, cutoff).
		Order("recorded_at").
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for seed %d: %w", seedID, err)
	}
	if len(prices) > 0 {
		return prices, nil
	}

	// No observations in range: seed the log with a placeholder so
	// clients always have at least one point to plot
	price := seed.Price
	if price.LessThanOrEqual(decimal.Zero) {
		price = s.engine.BasePrice()
	}
	placeholder := models.SeedPrice{
		SeedID:     seedID,
		Price:      price,
		Volume:     s.engine.Volume(500, 1000),
		RecordedAt: s.now(),
	}
	if err := s.db.Create(&placeholder).Error; err != nil {
		return nil, fmt.Errorf("failed to create placeholder observation for seed %d: %w", seedID, err)
	}
	return []models.SeedPrice{placeholder}, nil
}

// LatestPrice returns the most recent observation for a seed
func (s *Service) LatestPrice(seedID uint) (*models.SeedPrice, error) {
	var seed models.Seed
	if err := s.db.First(&seed, seedID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeedNotFound
		}
		return nil, fmt.Errorf("failed to load seed %d: %w", seedID, err)
	}

	var latest models.SeedPrice
	err := s.db.Where("seed_id = ?", seedID).
		Order("recorded_at DESC").
		First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPriceHistory
		}
		return nil, fmt.Errorf("failed to load latest price for seed %d: %w", seedID, err)
	}
	return &latest, nil
}

// Summary computes per-seed change against the previous observation
// plus market-wide totals. Seeds with no observations are skipped.
func (s *Service) Summary() (*Summary, error) {
	var seeds []models.Seed
	if err := s.db.Find(&seeds).Error; err != nil {
		return nil, fmt.Errorf("failed to load seeds: %w", err)
	}

	summaries := make([]SeedSummary, 0, len(seeds))
	totalVolume := 0
	marketCap := decimal.Zero

	for _, seed := range seeds {
		var latest models.SeedPrice
		err := s.db.Where("seed_id = ?", seed.ID).
			Order("recorded_at DESC").
			First(&latest).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load latest price for seed %d: %w", seed.ID, err)
		}

		// Previous observation defaults to the latest, yielding zero change
		previous := latest.Price
		var prev models.SeedPrice
		err = s.db.Where("seed_id = ?", seed.ID).
			Order("recorded_at DESC").
			Offset(1).
			First(&prev).Error
		if err == nil {
			previous = prev.Price
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load previous price for seed %d: %w", seed.ID, err)
		}

		change := latest.Price.Sub(previous).Round(2)
		changePercent := decimal.Zero
		if previous.GreaterThan(decimal.Zero) {
			changePercent = change.Div(previous).Mul(decimal.NewFromInt(100)).Round(1)
		}

		totalVolume += latest.Volume
		marketCap = marketCap.Add(latest.Price.Mul(decimal.NewFromInt(unitsPerSeed)))

		summaries = append(summaries, SeedSummary{
			ID:            seed.ID,
			Name:          seed.Name,
			Species:       seed.Species,
			CurrentPrice:  latest.Price,
			PreviousPrice: previous,
			Change:        change,
			ChangePercent: changePercent,
			Volume:        latest.Volume,
			Description:   seed.Description,
		})
	}

	return &Summary{
		Seeds: summaries,
		MarketStats: MarketStats{
			TotalVolume: totalVolume,
			MarketCap:   marketCap,
			SeedCount:   len(seeds),
		},
	}, nil
}
