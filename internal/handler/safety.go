package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Lakshin-amin/RakshaNet/pkg/response"
)

// StartTimerRequest 启动安全计时器
type StartTimerRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Minutes int    `json:"minutes" binding:"required"`
}

// CheckInRequest 安全签到
type CheckInRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// SOSRequest 立即求救；坐标可选但必须成对
type SOSRequest struct {
	UserID    string   `json:"userId" binding:"required"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
}

func (h *Handlers) StartTimer(c *gin.Context) {
	var req StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "userId and minutes are required")
		return
	}

	receipt, err := h.service.StartTimer(c.Request.Context(), req.UserID, req.Minutes, deviceFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, receipt.Message, receipt)
}

func (h *Handlers) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "userId is required")
		return
	}

	receipt, err := h.service.CheckIn(c.Request.Context(), req.UserID, deviceFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, receipt.Message, receipt)
}

func (h *Handlers) SOS(c *gin.Context) {
	var req SOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "userId is required")
		return
	}

	receipt, err := h.service.SOS(c.Request.Context(), req.UserID, req.Latitude, req.Longitude, deviceFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, receipt.Message, receipt)
}
