package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ai-native-85/tinytummy/controllers"
	"github.com/ai-native-85/tinytummy/middlewares"
)

// Controllers bundles the handler sets wired in main.
type Controllers struct {
	Auth         *controllers.AuthController
	Children     *controllers.ChildController
	Meals        *controllers.MealController
	Nutrition    *controllers.NutritionController
	Gamification *controllers.GamificationController
	Chat         *controllers.ChatController
	Realtime     *controllers.RealtimeController
}

func SetupRouter(ctl Controllers) *gin.Engine {
	r := gin.Default()

	// Public auth routes
	auth := r.Group("/auth")
	{
		auth.POST("/register", ctl.Auth.Register)
		auth.POST("/login", ctl.Auth.Login)
	}

	protected := r.Group("/")
	protected.Use(middlewares.AuthMiddleware())
	{
		children := protected.Group("/children")
		{
			children.POST("", ctl.Children.CreateChild)
			children.GET("", ctl.Children.ListChildren)
			children.GET("/:id", ctl.Children.GetChild)
		}

		meals := protected.Group("/meals")
		{
			meals.POST("", ctl.Meals.LogMeal)
			meals.GET("/:id", ctl.Meals.GetMeal)
			meals.PATCH("/:id", ctl.Meals.UpdateMeal)
			meals.DELETE("/:id", ctl.Meals.DeleteMeal)
			meals.GET("/child/:childId", ctl.Meals.ListMeals)

			// Aggregation aliases: same handlers as /nutrition, so both
			// surfaces return identical payloads for identical arguments.
			meals.GET("/daily/:childId", ctl.Nutrition.GetDailyTotals)
			meals.GET("/trend/:childId", ctl.Nutrition.GetTrend)
			meals.GET("/targets/:childId", ctl.Nutrition.GetTargets)
		}

		nutrition := protected.Group("/nutrition")
		{
			nutrition.GET("/daily/:childId", ctl.Nutrition.GetDailyTotals)
			nutrition.GET("/trend/:childId", ctl.Nutrition.GetTrend)
			nutrition.GET("/targets/:childId", ctl.Nutrition.GetTargets)
		}

		gamification := protected.Group("/gamification")
		{
			gamification.GET("/:childId", ctl.Gamification.GetSummary)
		}
		protected.GET("/badges", ctl.Gamification.ListBadges)

		chat := protected.Group("/chat")
		{
			chat.POST("/sessions", ctl.Chat.CreateSession)
			chat.GET("/sessions", ctl.Chat.ListSessions)
			chat.GET("/sessions/:id/messages", ctl.Chat.GetMessages)
			chat.POST("/sessions/:id/messages", ctl.Chat.SendMessage)
			chat.POST("/context", ctl.Chat.GetChatContext)
		}

		protected.GET("/ws/events", ctl.Realtime.EventsWS)
	}

	return r
}
