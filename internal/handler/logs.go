package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lakshin-amin/RakshaNet/pkg/response"
)

func (h *Handlers) Logs(c *gin.Context) {
	userID := c.Param("userId")

	alerts, err := h.store.ListAlerts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "alerts", alerts)
}

func (h *Handlers) LogsByDate(c *gin.Context) {
	userID := c.Param("userId")
	date := c.Param("date")

	// 日期格式必须是 YYYY-MM-DD
	if _, err := time.Parse("2006-01-02", date); err != nil {
		response.BadRequest(c, "Invalid date format. Use YYYY-MM-DD")
		return
	}

	alerts, err := h.store.ListAlertsByDate(c.Request.Context(), userID, date)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "alerts", alerts)
}

func (h *Handlers) Stats(c *gin.Context) {
	userID := c.Param("userId")

	stats, err := h.store.UserStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "stats", stats)
}
