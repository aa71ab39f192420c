package app

import (
	"net/http"

	"nbl_training_backend/docs"
	"nbl_training_backend/internal/config"
	"nbl_training_backend/internal/controller"
	"nbl_training_backend/internal/middleware"
	"nbl_training_backend/internal/service"
	"nbl_training_backend/internal/util"
	"nbl_training_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/guest", c.auth.GuestLogin)
		public.GET("/nbl/status", c.training.Status)
	}

	// 2. 训练接口，jwt.required 为 true 时强制认证
	auth := middleware.AuthMiddleware(&cfg.JWT)
	RegisterTrainingRoutes(router.Group("/api/nbl", auth), c.training)

	router.NoRoute(routeNotFound)

	// 3. 实时通道
	router.GET("/ws", auth, func(ctx *gin.Context) {
		service.ServeWs(s.hub, ctx.Writer, ctx.Request, util.GetUserFromContext(ctx))
	})
}

func RegisterTrainingRoutes(rg *gin.RouterGroup, tc *controller.TrainingController) {
	rg.POST("/start", tc.Start)
	rg.GET("/session/:sessionId", tc.GetSession)
	rg.GET("/history/:userId", tc.GetHistory)
	rg.POST("/session/:sessionId/complete", tc.Complete)
	rg.POST("/session/:sessionId/abort", tc.Abort)

	// 各阶段
	rg.POST("/session/:sessionId/buoyancy", tc.AdjustBuoyancy)
	rg.POST("/session/:sessionId/hatch", tc.EnterHatch)
	rg.POST("/session/:sessionId/repair", tc.RepairWall)
	rg.POST("/session/:sessionId/install", tc.InstallEquipment)
}

func routeNotFound(ctx *gin.Context) {
	util.Error(ctx, http.StatusNotFound, "Route not found")
}
