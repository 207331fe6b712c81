package api

import (
	"github.com/gin-gonic/gin"

	"veron/internal/models"
)

type chatMessageRequest struct {
	Message             string                  `json:"message" binding:"required,min=1,max=5000"`
	ConversationHistory []models.HistoryMessage `json:"conversationHistory"`
	Context             string                  `json:"context"`
}

type lessonPlanRequest struct {
	Topic    string `json:"topic" binding:"required,min=1,max=200"`
	Level    string `json:"level" binding:"required,oneof=beginner intermediate advanced"`
	Duration int    `json:"duration" binding:"required,min=15,max=180"`
}

func (h *Handler) chatMessage(c *gin.Context) {
	var req chatMessageRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	reply, err := h.chat.Generate(c.Request.Context(), req.Message, req.ConversationHistory, req.Context)
	if err != nil {
		h.fail(c, err, "Failed to generate response. Please try again.")
		return
	}
	h.ok(c, gin.H{
		"message":   reply.Text,
		"timestamp": h.now().UTC(),
		"usage":     reply.Usage,
	})
}

func (h *Handler) lessonPlan(c *gin.Context) {
	var req lessonPlanRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	plan, err := h.assistant.LessonPlan(c.Request.Context(), req.Topic, req.Level, req.Duration)
	if err != nil {
		h.fail(c, err, "Failed to generate lesson plan. Please try again.")
		return
	}
	h.ok(c, gin.H{
		"lessonPlan": plan,
		"topic":      req.Topic,
		"level":      req.Level,
		"duration":   req.Duration,
		"timestamp":  h.now().UTC(),
	})
}
