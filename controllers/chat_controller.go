package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ai-native-85/tinytummy/services"
)

type ChatController struct {
	Svc *services.ChatService
}

func NewChatController(svc *services.ChatService) *ChatController {
	return &ChatController{Svc: svc}
}

type CreateSessionInput struct {
	ChildID     uuid.UUID `json:"child_id" binding:"required"`
	SessionName string    `json:"session_name"`
}

func (h *ChatController) CreateSession(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.Svc.CreateSession(c.Request.Context(), userID, input.ChildID, input.SessionName)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *ChatController) ListSessions(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.Svc.ListSessions(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *ChatController) GetMessages(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	messages, err := h.Svc.GetMessages(c.Request.Context(), userID, sessionID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type SendMessageInput struct {
	Message string `json:"message" binding:"required"`
}

func (h *ChatController) SendMessage(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.Svc.SendMessage(c.Request.Context(), userID, sessionID, input.Message)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

type ChatContextInput struct {
	ChildID uuid.UUID `json:"child_id" binding:"required"`
	Query   string    `json:"query" binding:"required"`
}

// GetChatContext exposes the assembled context blocks and the retrieval-path
// flag without calling the completion model.
func (h *ChatController) GetChatContext(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input ChatContextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chatCtx, err := h.Svc.BuildContext(c.Request.Context(), userID, input.ChildID, input.Query, nil)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, chatCtx)
}
