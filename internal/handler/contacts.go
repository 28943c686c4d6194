package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/response"
)

// ContactRequest 添加/删除联系人
type ContactRequest struct {
	UserID string `json:"userId" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
}

func (h *Handlers) AddContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "userId and phone are required")
		return
	}

	if err := h.store.AddContact(c.Request.Context(), req.UserID, req.Phone); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "Contact saved", gin.H{
		"added_at": models.FormatHuman(models.Now()),
	})
}

func (h *Handlers) DeleteContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "userId and phone are required")
		return
	}

	if err := h.store.RemoveContact(c.Request.Context(), req.UserID, req.Phone); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "Contact removed", nil)
}

func (h *Handlers) Contacts(c *gin.Context) {
	userID := c.Param("userId")

	contacts, err := h.store.GetContacts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "contacts", gin.H{
		"contacts":   contacts,
		"count":      len(contacts),
		"fetched_at": models.FormatHuman(models.Now()),
	})
}
