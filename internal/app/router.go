package app

import (
	"langtest_backend/docs"
	"langtest_backend/internal/config"
	"langtest_backend/internal/middleware"
	"langtest_backend/internal/model"
	"langtest_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 学生作答
	a.registerSubmissionRoutes(router, c, cfg)

	// 3. 教师评分
	a.registerGradingRoutes(router, c, cfg)
}

func (a *App) registerSubmissionRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	submissions := router.Group("/api/submissions")
	submissions.Use(middleware.AuthMiddleware(cfg))
	{
		submissions.POST("", c.submission.Start)
		submissions.GET("/:id", c.submission.Get)
		submissions.PUT("/:id/answers/:questionId", c.submission.RecordAnswer)
		submissions.POST("/:id/answers/:questionId/recording", c.submission.UploadRecording)
		submissions.POST("/:id/submit", c.submission.Submit)
	}
}

func (a *App) registerGradingRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Teacher))
	{
		admin.GET("/submissions", c.grading.ListQueue)
		admin.GET("/submissions/:id/answers", c.grading.ReviewAnswers)
		admin.POST("/grade", c.grading.Grade)
		admin.POST("/submissions/:id/complete", c.grading.Complete)
	}
}
