package handler

import (
	"errors"
	"strconv"

	"pointledger/internal/service"
	"pointledger/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 积分接口
type Handler struct {
	pointService *service.PointService
	logger       *zap.Logger
}

func NewHandler(pointService *service.PointService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pointService: pointService,
		logger:       logger.Named("handler"),
	}
}

// PointAmountRequest 充值/使用请求
type PointAmountRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// GetUserPoint 查询用户积分
// GET /point/:id
func (h *Handler) GetUserPoint(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	point, err := h.pointService.GetUserPoint(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, point)
}

// GetPointHistories 查询用户积分流水
// GET /point/:id/histories
func (h *Handler) GetPointHistories(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	histories, err := h.pointService.GetPointHistories(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, histories)
}

// Charge 充值积分
// PATCH /point/:id/charge
func (h *Handler) Charge(c *gin.Context) {
	userID, req, ok := parseAmountRequest(c)
	if !ok {
		return
	}

	point, err := h.pointService.Charge(c.Request.Context(), userID, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, point)
}

// Use 使用积分
// PATCH /point/:id/use
func (h *Handler) Use(c *gin.Context) {
	userID, req, ok := parseAmountRequest(c)
	if !ok {
		return
	}

	point, err := h.pointService.Use(c.Request.Context(), userID, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, point)
}

// Open 开户
// POST /point/:id
func (h *Handler) Open(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	point, err := h.pointService.Open(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, point)
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return 0, false
	}
	return userID, true
}

func parseAmountRequest(c *gin.Context) (int64, PointAmountRequest, bool) {
	var req PointAmountRequest
	userID, ok := parseUserID(c)
	if !ok {
		return 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return 0, req, false
	}
	return userID, req, true
}

// writeError 把服务层错误映射为 HTTP 响应
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientPoints, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrAlreadyExists):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err))
		response.ServerError(c, err.Error())
	}
}
