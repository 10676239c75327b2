package models

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seed represents a tradable seed product in the market catalog
type Seed struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Species     string          `json:"species"`
	Quantity    int             `gorm:"default:0" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SeedPrice is one observation in the append-only price log.
// Rows are only ever inserted; the latest price for a seed is the row
// with the greatest recorded_at.
type SeedPrice struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	SeedID     uint            `gorm:"index:idx_seed_recorded" json:"seed_id"`
	Seed       Seed            `gorm:"foreignKey:SeedID" json:"seed,omitempty"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"`
	Volume     int             `json:"volume"`
	RecordedAt time.Time       `gorm:"index:idx_seed_recorded" json:"recorded_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PricePoint is the wire shape for price history responses
type PricePoint struct {
	ID         uint            `json:"id"`
	SeedID     uint            `json:"seed_id"`
	Date       string          `json:"date"`
	RecordedAt time.Time       `json:"recorded_at"`
	Price      decimal.Decimal `json:"price"`
	Volume     int             `json:"volume"`
}

// ToPoint converts a price observation to its response shape
func (p *SeedPrice) ToPoint() PricePoint {
	return PricePoint{
		ID:         p.ID,
		SeedID:     p.SeedID,
		Date:       p.RecordedAt.Format("2006-01-02"),
		RecordedAt: p.RecordedAt,
		Price:      p.Price,
		Volume:     p.Volume,
	}
}

// MigrateMarketModels runs database migrations for market-related models
func MigrateMarketModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&Seed{}, &SeedPrice{}); err != nil {
		return err
	}
	return backfillLegacyPriceHistory(db)
}

// backfillLegacyPriceHistory copies rows from the legacy price_history
// table (product_id/date, no volume) into seed_prices. The copy is
// idempotent; the legacy table is never read or written at runtime.
func backfillLegacyPriceHistory(db *gorm.DB) error {
	if !db.Migrator().HasTable("price_history") {
		return nil
	}

	res := db.Exec(`
		INSERT INTO seed_prices (seed_id, price, volume, recorded_at, created_at)
		SELECT ph.product_id, ph.price, 0, ph.date, ph.date
		FROM price_history ph
		WHERE NOT EXISTS (
			SELECT 1 FROM seed_prices sp
			WHERE sp.seed_id = ph.product_id AND sp.recorded_at = ph.date
		)`)
	if res.Error != nil {
		return fmt.Errorf("failed to backfill legacy price history: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		log.Printf("Backfilled %d rows from legacy price_history table", res.RowsAffected)
	}
	return nil
}

// SeedDefaultCatalog creates the starter seed catalog if the table is empty
func SeedDefaultCatalog(db *gorm.DB) error {
	var count int64
	db.Model(&Seed{}).Count(&count)
	if count > 0 {
		// Catalog already populated
		return nil
	}

	catalog := []Seed{
		{Name: "Tomato", Species: "Solanum lycopersicum", Quantity: 100, Price: decimal.NewFromFloat(2.50), Description: "Classic heirloom tomato seeds"},
		{Name: "Carrot", Species: "Daucus carota", Quantity: 150, Price: decimal.NewFromFloat(1.75), Description: "Sweet orange carrot seeds"},
		{Name: "Sunflower", Species: "Helianthus annuus", Quantity: 80, Price: decimal.NewFromFloat(3.25), Description: "Tall golden sunflower seeds"},
		{Name: "Basil", Species: "Ocimum basilicum", Quantity: 200, Price: decimal.NewFromFloat(2.00), Description: "Aromatic sweet basil seeds"},
		{Name: "Pumpkin", Species: "Cucurbita pepo", Quantity: 60, Price: decimal.NewFromFloat(4.50), Description: "Large carving pumpkin seeds"},
	}

	if err := db.Create(&catalog).Error; err != nil {
		return err
	}

	// Each catalog seed starts with one observation at its list price
	now := time.Now()
	prices := make([]SeedPrice, 0, len(catalog))
	for _, s := range catalog {
		prices = append(prices, SeedPrice{
			SeedID:     s.ID,
			Price:      s.Price,
			Volume:     s.Quantity,
			RecordedAt: now,
		})
	}
	return db.Create(&prices).Error
}
