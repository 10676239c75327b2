package controllers

import (
	"log"
	"net/http"

	"seedmart_backend/services"
	"seedmart_backend/services/market"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MarketController handles market-wide requests
type MarketController struct {
	market *market.Service
}

// NewMarketController creates a new market controller
func NewMarketController(db *gorm.DB) *MarketController {
	return &MarketController{
		market: market.NewService(db),
	}
}

// GetMarketSummary returns current prices and market statistics
// GET /api/market/summary
func (mc *MarketController) GetMarketSummary(c *gin.Context) {
	summary, err := mc.market.Summary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build market summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UpdateMarket triggers one pricing tick manually. It runs the same
// routine as the scheduler without any mutual exclusion against it;
// the append-only log tolerates a concurrent tick.
// POST /api/market/update
func (mc *MarketController) UpdateMarket(c *gin.Context) {
	updates, err := mc.market.UpdateAllPrices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	if services.GlobalStreamHub != nil {
		if summary, err := mc.market.Summary(); err == nil {
			services.GlobalStreamHub.Broadcast("market_summary", summary)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updates": updates})
}

// StreamMarket upgrades the connection to a WebSocket that receives a
// market summary after every pricing tick
// GET /api/market/stream
func (mc *MarketController) StreamMarket(c *gin.Context) {
	if services.GlobalStreamHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Market stream not available"})
		return
	}
	if err := services.GlobalStreamHub.ServeWS(c.Writer, c.Request); err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
	}
}
