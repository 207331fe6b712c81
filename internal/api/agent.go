package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"veron/internal/apperr"
	"veron/internal/models"
)

type agentChatRequest struct {
	Message   string `json:"message" binding:"required,min=1,max=5000"`
	SessionID string `json:"session_id" binding:"max=200"`
}

type systemPromptRequest struct {
	Prompt string `json:"prompt" binding:"required,max=10000"`
}

func (h *Handler) agentChat(c *gin.Context) {
	var req agentChatRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	res, err := h.agent.Chat(c.Request.Context(), req.Message, strings.TrimSpace(req.SessionID))
	if err != nil {
		h.fail(c, err, "Failed to get response from agent. Please try again.")
		return
	}
	h.ok(c, res)
}

func (h *Handler) createSession(c *gin.Context) {
	s := h.sessions.Create()
	h.ok(c, gin.H{
		"session_id": s.ID,
		"created_at": s.CreatedAt,
		"message":    "New session created successfully",
	})
}

func (h *Handler) getSession(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		h.fail(c, apperr.NotFound("session"), "Session not found")
		return
	}
	h.ok(c, gin.H{
		"session_id":   s.ID,
		"session_info": sessionInfo(s),
	})
}

func (h *Handler) listSessions(c *gin.Context) {
	active := h.sessions.ListActive()
	out := make(map[string]gin.H, len(active))
	for _, s := range active {
		out[s.ID] = sessionInfo(s)
	}
	h.ok(c, gin.H{
		"active_sessions": out,
		"count":           len(active),
	})
}

func (h *Handler) cleanupSessions(c *gin.Context) {
	n := h.sessions.Cleanup()
	h.ok(c, gin.H{
		"cleaned_sessions": n,
		"message":          "Session cleanup completed",
	})
}

func (h *Handler) getSystemPrompt(c *gin.Context) {
	h.ok(c, gin.H{"system_prompt": h.agent.SystemPrompt()})
}

func (h *Handler) updateSystemPrompt(c *gin.Context) {
	var req systemPromptRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	if err := h.agent.SetSystemPrompt(req.Prompt); err != nil {
		h.fail(c, err, "Failed to update system prompt")
		return
	}
	h.ok(c, gin.H{
		"system_prompt": h.agent.SystemPrompt(),
		"message":       "System prompt updated successfully",
	})
}

func (h *Handler) agentHealth(c *gin.Context) {
	h.ok(c, gin.H{
		"status":        "healthy",
		"service":       "bedrock-agent",
		"agent_id_set":  h.cfg.Agent.AgentID != "",
		"alias_id_set":  h.cfg.Agent.AliasID != "",
		"indexed_files": h.files.Len(),
		"timestamp":     h.now().UTC(),
	})
}

func sessionInfo(s models.Session) gin.H {
	return gin.H{
		"created_at":    s.CreatedAt,
		"last_used":     s.LastUsed,
		"message_count": s.MessageCount,
	}
}
