package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/config"
	"github.com/qrdine/qrdine/controllers"
	"github.com/qrdine/qrdine/middlewares"
	"github.com/qrdine/qrdine/realtime"
)

func SetupRouter(db *gorm.DB, hub *realtime.Hub, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(db)
	foodCtrl := controllers.NewFoodController(db)
	tableCtrl := controllers.NewTableController(db, hub, cfg.PublicBaseURL)
	sessionCtrl := controllers.NewSessionController(db, hub)
	orderCtrl := controllers.NewOrderController(db, hub)
	publicOrderCtrl := controllers.NewPublicOrderController(db, hub)
	dashboardCtrl := controllers.NewDashboardController(db)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// realtime channel for dashboard / kitchen clients
	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	{
		ws.GET("", controllers.RealtimeHandler(hub))
	}

	// ----------------------------------------------------------------
	//                      PUBLIC (customer) ROUTES
	// ----------------------------------------------------------------
	public := r.Group("/api/public")
	{
		public.GET("/foods", foodCtrl.GetAvailableFoods)

		public.POST("/table/:table_no/session", sessionCtrl.StartSession)
		public.GET("/table/:table_no/session", sessionCtrl.GetActiveSession)

		public.POST("/order/:table_no", publicOrderCtrl.CreateOrder)
		public.POST("/order/:table_no/cancel", publicOrderCtrl.CancelItems)
		public.GET("/order/session/:session_key", publicOrderCtrl.GetSessionOrders)
	}

	// ----------------------------------------------------------------
	//                      AUTH
	// ----------------------------------------------------------------
	r.POST("/api/auth/register", userCtrl.Register)
	r.POST("/api/auth/login", userCtrl.Login)

	// ----------------------------------------------------------------
	//                      ADMIN / STAFF ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())
	{
		api.GET("/profile", userCtrl.GetProfile)

		// ORDERS
		api.GET("/order", orderCtrl.GetAllOrders)
		api.GET("/order/:order_id", orderCtrl.GetOrderByID)
		api.PUT("/order/:order_id", orderCtrl.UpdateOrderItems)
		api.PUT("/order/:order_id/status", orderCtrl.UpdateOrderStatus)

		// FOOD INVENTORY
		api.GET("/food", foodCtrl.GetAllFoods)
		api.POST("/food", foodCtrl.CreateFood)
		api.GET("/food/:food_id", foodCtrl.GetFoodByID)
		api.PATCH("/food/:food_id", foodCtrl.UpdateFood)
		api.PATCH("/food/:food_id/availability", foodCtrl.ToggleAvailability)
		api.DELETE("/food/:food_id", foodCtrl.DeleteFood)

		// TABLES
		api.GET("/table", tableCtrl.GetAllTables)
		api.POST("/table", tableCtrl.CreateTables)
		api.PATCH("/table/:table_id", tableCtrl.UpdateTableStatus)
		api.PATCH("/table/:table_id/clean", tableCtrl.MarkTableClean)
		api.DELETE("/table/:table_id", tableCtrl.DeleteTable)

		// SESSIONS
		api.GET("/session", sessionCtrl.GetAllSessions)
		api.PATCH("/session/:session_id/close", sessionCtrl.CloseSession)

		// DASHBOARD
		api.GET("/dashboard/revenue", dashboardCtrl.GetRevenue)
		api.GET("/dashboard/most-ordered", dashboardCtrl.GetMostOrdered)
		api.GET("/dashboard/least-ordered", dashboardCtrl.GetLeastOrdered)
		api.GET("/dashboard/peak-hours", dashboardCtrl.GetPeakHours)
		api.GET("/dashboard/table-utilization", dashboardCtrl.GetTableUtilization)
	}

	return r
}
