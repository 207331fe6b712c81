package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"veron/internal/api"
	"veron/internal/auth"
	"veron/internal/config"
	"veron/internal/filecontext"
	"veron/internal/redis"
	"veron/internal/security"
	"veron/internal/service/agent"
	"veron/internal/service/ai"
	"veron/internal/service/assistant"
	"veron/internal/service/voice"
	"veron/internal/session"
	"veron/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath, addr string
	cmd := &cobra.Command{
		Use:          "veron",
		Short:        "Veron AI backend: chat, agent, voice and document context over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				cfgPath = os.Getenv("VERON_CONFIG")
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to the JSON config file (default $VERON_CONFIG)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
	return cmd
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Server.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := newLogger(cfg)
	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	auditLog := storage.NewAuditLog(db)

	var limiter security.Limiter
	window := cfg.RateLimit.Window()
	if strings.EqualFold(cfg.RateLimit.Backend, "redis") {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer rdb.Close()
		limiter = security.NewRedisLimiter(rdb, "veron:ratelimit", cfg.RateLimit.MaxRequests, window)
	} else {
		mem := security.NewMemoryLimiter(cfg.RateLimit.MaxRequests, window)
		mem.StartSweeper(ctx, window)
		limiter = mem
	}

	extractor, err := filecontext.NewLoaderExtractor(ctx)
	if err != nil {
		return fmt.Errorf("init document loader: %w", err)
	}
	index := filecontext.NewIndex(extractor, filecontext.WithLogger(log))

	chatModel, err := ai.NewChatModel(ctx, cfg.Chat, cfg.AWS)
	if err != nil {
		return fmt.Errorf("init chat model: %w", err)
	}
	chatOpts := ai.Options{
		HistoryLimit: cfg.Chat.HistoryLimit,
		MaxTokens:    cfg.Chat.MaxTokens,
		Logger:       log,
	}
	if cfg.Chat.FileTool {
		chatOpts.Files = index
	}
	chatService, err := ai.NewService(ctx, chatModel, chatOpts)
	if err != nil {
		return fmt.Errorf("init chat service: %w", err)
	}
	assistantService, err := assistant.NewService(chatModel)
	if err != nil {
		return fmt.Errorf("init assistant service: %w", err)
	}

	sessions := session.NewStore(cfg.Sessions.IdleTimeout)
	sessions.StartCleaner(ctx, cfg.Sessions.CleanupInterval, log)

	runtime, err := agent.NewBedrockRuntime(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("init agent runtime: %w", err)
	}
	agentService := agent.NewService(runtime, agent.Options{
		AgentID:      cfg.Agent.AgentID,
		AliasID:      cfg.Agent.AliasID,
		SystemPrompt: cfg.Agent.SystemPrompt,
		ContextFiles: cfg.Agent.ContextFiles,
		Files:        index,
		Sessions:     sessions,
		Logger:       log,
	})
	if cfg.Agent.AgentID == "" || cfg.Agent.AliasID == "" {
		log.Warn("agent_id or alias_id not configured; agent chat will be unavailable")
	}

	voiceService := voice.NewService(cfg.Voice, nil)
	if !voiceService.Configured() {
		log.Warn("voice api key not configured; voice routes will fail")
	}

	handlers := api.NewHandler(api.Deps{
		Config:    cfg,
		Chat:      chatService,
		Assistant: assistantService,
		Agent:     agentService,
		Sessions:  sessions,
		Files:     index,
		Voice:     voiceService,
		Audit:     auditLog,
		Auth:      auth.NewService(cfg.Security.APIKey, cfg.Security.ForceHTTPS),
		Limiter:   limiter,
		Logger:    log,
	})
	handlers.StartSweepers(ctx)

	router := gin.New()
	handlers.RegisterRoutes(router)

	log.WithFields(logrus.Fields{
		"addr":        cfg.Server.Address,
		"environment": cfg.Server.Environment,
		"provider":    cfg.Chat.Provider,
		"rate_limit":  cfg.RateLimit.Backend,
	}).Info("veron backend listening")
	if err := router.Run(cfg.Server.Address); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
