package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"seedmart_backend/models"
	"seedmart_backend/services/market"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedController handles seed CRUD and price history requests
type SeedController struct {
	db     *gorm.DB
	market *market.Service
}

// NewSeedController creates a new seed controller
func NewSeedController(db *gorm.DB) *SeedController {
	return &SeedController{
		db:     db,
		market: market.NewService(db),
	}
}

// GetSeeds returns all seeds
// GET /api/seeds
func (sc *SeedController) GetSeeds(c *gin.Context) {
	var seeds []models.Seed
	if err := sc.db.Find(&seeds).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch seeds"})
		return
	}
	c.JSON(http.StatusOK, seeds)
}

// GetSeed returns a single seed by ID
// GET /api/seeds/:id
func (sc *SeedController) GetSeed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var seed models.Seed
	if err := sc.db.First(&seed, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch seed"})
		return
	}
	c.JSON(http.StatusOK, seed)
}

type createSeedRequest struct {
	Name        string          `json:"name" binding:"required"`
	Species     string          `json:"species"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

// CreateSeed creates a seed and, when a price is given, its first
// price observation
// POST /api/seeds
func (sc *SeedController) CreateSeed(c *gin.Context) {
	var req createSeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Seed name is required"})
		return
	}

	seed := models.Seed{
		Name:        req.Name,
		Species:     req.Species,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Description: req.Description,
	}
	if err := sc.db.Create(&seed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create seed"})
		return
	}

	if seed.Price.GreaterThan(decimal.Zero) {
		initial := models.SeedPrice{
			SeedID:     seed.ID,
			Price:      seed.Price,
			Volume:     seed.Quantity,
			RecordedAt: time.Now(),
		}
		if err := sc.db.Create(&initial).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record initial price"})
			return
		}
	}

	c.JSON(http.StatusCreated, seed)
}

type updateSeedRequest struct {
	Name        *string          `json:"name"`
	Species     *string          `json:"species"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
}

// UpdateSeed applies a partial update. A changed price also appends a
// new observation so the log stays in step with the catalog.
// PUT /api/seeds/:id
func (sc *SeedController) UpdateSeed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var seed models.Seed
	if err := sc.db.First(&seed, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch seed"})
		return
	}

	var req updateSeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Name != nil {
		seed.Name = *req.Name
	}
	if req.Species != nil {
		seed.Species = *req.Species
	}
	if req.Quantity != nil {
		seed.Quantity = *req.Quantity
	}
	if req.Description != nil {
		seed.Description = *req.Description
	}

	priceChanged := req.Price != nil && !req.Price.Equal(seed.Price)
	if priceChanged {
		seed.Price = *req.Price
	}

	if err := sc.db.Save(&seed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update seed"})
		return
	}

	if priceChanged {
		observation := models.SeedPrice{
			SeedID:     seed.ID,
			Price:      seed.Price,
			Volume:     seed.Quantity,
			RecordedAt: time.Now(),
		}
		if err := sc.db.Create(&observation).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record price change"})
			return
		}
	}

	c.JSON(http.StatusOK, seed)
}

// DeleteSeed removes a seed and its price observations
// DELETE /api/seeds/:id
func (sc *SeedController) DeleteSeed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var seed models.Seed
	if err := sc.db.First(&seed, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch seed"})
		return
	}

	if err := sc.db.Where("seed_id = ?", seed.ID).Delete(&models.SeedPrice{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete seed prices"})
		return
	}
	if err := sc.db.Delete(&seed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete seed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Seed deleted"})
}

// GetSeedPrices returns the price history for a seed within a timeframe.
// Unknown seeds get an empty array, not a 404, to spare clients the
// error handling.
// GET /api/seeds/:id/prices?timeframe=1w
func (sc *SeedController) GetSeedPrices(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusOK, []models.PricePoint{})
		return
	}

	timeframe := c.DefaultQuery("timeframe", "1w")
	history, err := sc.market.PriceHistory(uint(id), timeframe)
	if err != nil {
		if errors.Is(err, market.ErrSeedNotFound) {
			c.JSON(http.StatusOK, []models.PricePoint{})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred processing your request"})
		return
	}

	points := make([]models.PricePoint, 0, len(history))
	for i := range history {
		points = append(points, history[i].ToPoint())
	}
	c.JSON(http.StatusOK, points)
}

// GetLatestPrice returns the most recent observation for a seed
// GET /api/seeds/:id/latest-price
func (sc *SeedController) GetLatestPrice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	latest, err := sc.market.LatestPrice(id)
	if err != nil {
		switch {
		case errors.Is(err, market.ErrSeedNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
		case errors.Is(err, market.ErrNoPriceHistory):
			c.JSON(http.StatusNotFound, gin.H{"error": "No price history available for this seed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch latest price"})
		}
		return
	}
	c.JSON(http.StatusOK, latest.ToPoint())
}

// GetPriceHistory returns the full price history in the legacy
// {date, price} shape
// GET /api/price-history/:id
func (sc *SeedController) GetPriceHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var seed models.Seed
	if err := sc.db.First(&seed, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve price history"})
		return
	}

	var prices []models.SeedPrice
	err := sc.db.Where("seed_id = ?", seed.ID).
		Order("recorded_at").
		Find(&prices).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve price history"})
		return
	}

	result := make([]gin.H, 0, len(prices))
	for _, p := range prices {
		result = append(result, gin.H{
			"date":  p.RecordedAt.Format("2006-01-02"),
			"price": p.Price,
		})
	}
	c.JSON(http.StatusOK, result)
}

// parseID reads the :id path parameter; a malformed ID behaves like a
// missing seed
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
		return 0, false
	}
	return uint(id), true
}
