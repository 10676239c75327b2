package routes

import (
	"seedmart_backend/controllers"
	"seedmart_backend/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB) {
	// Initialize controllers
	seedController := controllers.NewSeedController(db)
	marketController := controllers.NewMarketController(db)
	authController := controllers.NewAuthController(db)

	api := router.Group("/api")
	{
		// Seed routes
		seeds := api.Group("/seeds")
		{
			seeds.GET("", seedController.GetSeeds)
			seeds.POST("", seedController.CreateSeed)
			seeds.GET("/:id", seedController.GetSeed)
			seeds.PUT("/:id", seedController.UpdateSeed)
			seeds.DELETE("/:id", seedController.DeleteSeed)
			seeds.GET("/:id/prices", seedController.GetSeedPrices)
			seeds.GET("/:id/latest-price", seedController.GetLatestPrice)
		}

		// Market routes
		market := api.Group("/market")
		{
			market.GET("/summary", marketController.GetMarketSummary)
			market.POST("/update", marketController.UpdateMarket)
			market.GET("/stream", marketController.StreamMarket)
		}

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", authController.Login)
			auth.GET("/me", middleware.JWTAuthMiddleware(), authController.Me)
			auth.POST("/refresh", middleware.RefreshAuthMiddleware(), authController.Refresh)
			auth.POST("/logout", middleware.JWTAuthMiddleware(), authController.Logout)
		}

		// Legacy price history route, kept for older clients
		api.GET("/price-history/:id", seedController.GetPriceHistory)
	}
}
