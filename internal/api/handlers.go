package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veron/internal/auth"
	"veron/internal/config"
	"veron/internal/filecontext"
	"veron/internal/models"
	"veron/internal/security"
	"veron/internal/service/agent"
	"veron/internal/service/ai"
	"veron/internal/session"
)

type ChatService interface {
	Generate(ctx context.Context, message string, history []models.HistoryMessage, extraContext string) (*ai.Reply, error)
}

type AssistantService interface {
	LessonPlan(ctx context.Context, topic, level string, duration int) (string, error)
	AnalyzeDocument(ctx context.Context, text, filename string) (string, error)
}

type AgentService interface {
	Chat(ctx context.Context, message, sessionID string) (*agent.Result, error)
	SystemPrompt() string
	SetSystemPrompt(prompt string) error
}

type VoiceService interface {
	Configured() bool
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
	SpeechToText(ctx context.Context, filename, contentType string, audio io.Reader, language string) (string, error)
	Voices(ctx context.Context) ([]map[string]any, error)
}

type AuditStore interface {
	Record(ctx context.Context, ev models.AuditEvent) error
	List(ctx context.Context, limit, offset int) ([]models.AuditEvent, int, error)
}

// Deps lists everything the HTTP layer talks to.
type Deps struct {
	Config    *config.Config
	Chat      ChatService
	Assistant AssistantService
	Agent     AgentService
	Sessions  *session.Store
	Files     *filecontext.Index
	Voice     VoiceService
	Audit     AuditStore
	Auth      *auth.Service
	Limiter   security.Limiter
	Logger    *logrus.Logger
}

// Handler wires HTTP routes to the services.
type Handler struct {
	cfg        *config.Config
	chat       ChatService
	assistant  AssistantService
	agent      AgentService
	sessions   *session.Store
	files      *filecontext.Index
	voice      VoiceService
	audit      AuditStore
	auth       *auth.Service
	limiter    security.Limiter
	cspLimiter *security.MemoryLimiter
	logLimiter *security.MemoryLimiter
	log        *logrus.Logger
	now        func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		cfg:        d.Config,
		chat:       d.Chat,
		assistant:  d.Assistant,
		agent:      d.Agent,
		sessions:   d.Sessions,
		files:      d.Files,
		voice:      d.Voice,
		audit:      d.Audit,
		auth:       d.Auth,
		limiter:    d.Limiter,
		cspLimiter: security.NewMemoryLimiter(10, time.Minute),
		logLimiter: security.NewMemoryLimiter(5, time.Minute),
		log:        d.Logger,
		now:        time.Now,
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.limiter == nil {
		h.limiter = security.NewMemoryLimiter(d.Config.RateLimit.MaxRequests, d.Config.RateLimit.Window())
	}
	if h.sessions == nil {
		h.sessions = session.NewStore(d.Config.Sessions.IdleTimeout)
	}
	if h.auth == nil {
		h.auth = auth.NewService(d.Config.Security.APIKey, d.Config.Security.ForceHTTPS)
	}
	return h
}

// RegisterRoutes attaches middleware and all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.recovery(), h.requestLogger())
	router.Use(security.Headers(h.cfg.Security), security.CORS(h.cfg.Security))
	if h.cfg.Security.BlockSuspicious {
		router.Use(security.SuspiciousFilter(h.log, maxBatchFiles*h.cfg.Server.MaxUploadBytes+1<<20))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found"})
	})

	router.GET("/api/health", h.health)

	api := router.Group("/api")
	api.Use(security.RateLimit(h.limiter, "api", h.log))

	chat := api.Group("/chat")
	chat.POST("/message", h.chatMessage)
	chat.POST("/lesson-plan", h.lessonPlan)
	chat.GET("/health", h.serviceHealth("Chat service is healthy"))

	ag := api.Group("/agent")
	ag.POST("/chat", h.agentChat)
	ag.POST("/session/new", h.createSession)
	ag.GET("/session/:id", h.getSession)
	ag.GET("/sessions", h.listSessions)
	ag.POST("/sessions/cleanup", h.cleanupSessions)
	ag.GET("/system-prompt", h.getSystemPrompt)
	ag.PUT("/system-prompt", h.updateSystemPrompt)
	ag.POST("/upload", h.uploadFile)
	ag.GET("/files", h.listFiles)
	ag.GET("/files/stats", h.fileStats)
	ag.POST("/files/search", h.searchFiles)
	ag.GET("/files/:id", h.getFile)
	ag.DELETE("/files/:id", h.deleteFile)
	ag.POST("/files/:id/analyze", h.analyzeFile)
	ag.GET("/health", h.agentHealth)

	kb := api.Group("/knowledge")
	kb.POST("/upload", h.knowledgeUpload)
	kb.GET("/files", h.listFiles)
	kb.DELETE("/files/:id", h.deleteFile)
	kb.GET("/search", h.knowledgeSearch)
	kb.GET("/health", h.serviceHealth("Knowledge base service is healthy"))

	voice := api.Group("/voice")
	voice.POST("/tts", h.textToSpeech)
	voice.POST("/stt", h.speechToText)
	voice.GET("/voices", h.listVoices)
	voice.GET("/health", h.voiceHealth)

	sec := api.Group("/security")
	sec.POST("/csp-report", security.RateLimit(h.cspLimiter, "csp", h.log), h.cspReport)
	sec.GET("/audit-log", h.auth.Middleware(), security.RateLimit(h.logLimiter, "audit", h.log), h.auditLog)
	sec.GET("/headers", h.securityHeaders)
	sec.GET("/health", h.securityHealth)
}

// StartSweepers expires idle per-route rate-limit counters until ctx is cancelled.
func (h *Handler) StartSweepers(ctx context.Context) {
	h.cspLimiter.StartSweeper(ctx, time.Minute)
	h.logLimiter.StartSweeper(ctx, time.Minute)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   "Veron AI Backend is running",
		"timestamp": h.now().UTC(),
	})
}

func (h *Handler) serviceHealth(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   message,
			"timestamp": h.now().UTC(),
		})
	}
}
