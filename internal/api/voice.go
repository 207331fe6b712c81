package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"veron/internal/apperr"
)

type ttsRequest struct {
	Text string `json:"text" binding:"required,min=1,max=5000"`
}

func (h *Handler) textToSpeech(c *gin.Context) {
	var req ttsRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	audio, err := h.voice.TextToSpeech(c.Request.Context(), req.Text)
	if err != nil {
		h.fail(c, err, "Failed to generate speech. Please try again.")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) speechToText(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil || file.Filename == "" {
		h.fail(c, apperr.Validation("audio", "No audio file provided."), "Invalid request")
		return
	}
	language := strings.TrimSpace(c.PostForm("language"))
	if language == "" {
		language = "auto"
	}
	f, err := file.Open()
	if err != nil {
		h.fail(c, apperr.Validation("audio", "Audio file could not be read."), "Invalid request")
		return
	}
	defer f.Close()

	text, err := h.voice.SpeechToText(c.Request.Context(), file.Filename, file.Header.Get("Content-Type"), f, language)
	if err != nil {
		h.fail(c, err, "Failed to transcribe audio. Please try again.")
		return
	}
	h.ok(c, gin.H{
		"text":      text,
		"language":  language,
		"timestamp": h.now().UTC(),
	})
}

func (h *Handler) listVoices(c *gin.Context) {
	voices, err := h.voice.Voices(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to fetch voices. Please try again.")
		return
	}
	h.ok(c, gin.H{
		"voices":    voices,
		"timestamp": h.now().UTC(),
	})
}

func (h *Handler) voiceHealth(c *gin.Context) {
	h.ok(c, gin.H{
		"status":     "healthy",
		"service":    "voice",
		"configured": h.voice.Configured(),
		"timestamp":  h.now().UTC(),
	})
}
