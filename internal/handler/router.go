package handler

import (
	"pointledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由，gin 的运行模式由调用方设置
func SetupRouter(pointService *service.PointService, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()

	// 注册中间件，RequestID 最先执行，后面的日志才能带上
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	h := NewHandler(pointService, logger)

	point := r.Group("/point")
	{
		point.GET("/:id", h.GetUserPoint)
		point.GET("/:id/histories", h.GetPointHistories)
		point.PATCH("/:id/charge", h.Charge)
		point.PATCH("/:id/use", h.Use)
		point.POST("/:id", h.Open)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
