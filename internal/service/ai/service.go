package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"veron/internal/apperr"
	"veron/internal/models"
)

const (
	DefaultHistoryLimit = 10
	DefaultMaxTokens    = 2000
	chatTemperature     = 0.7
	chatTopP            = 0.9
	serviceName         = "chat"
)

const systemPromptTemplate = `You are Veron, an expert English AI teaching assistant specializing in technical English for AI, IoT, and chip technology education. Your role is to:

1. Help teachers explain complex technical concepts in simple English
2. Provide vocabulary, grammar, and pronunciation guidance
3. Create lesson plans and teaching materials
4. Suggest effective teaching methods for technical subjects
5. Adapt explanations to different English proficiency levels

Context from knowledge base: %s

Always be encouraging, professional, and educational in your responses. Focus on practical teaching applications.`

const fileToolHint = "\n\nThe user has uploaded teaching documents. Call the file_search tool when a question may be answered by them."

// Reply is the model output for one chat turn.
type Reply struct {
	Text  string       `json:"message"`
	Usage models.Usage `json:"usage"`
}

// Options configures the chat service.
type Options struct {
	HistoryLimit int
	MaxTokens    int
	Files        FileSearcher
	Logger       logrus.FieldLogger
}

// Service answers chat messages with the configured model. When an index is
// supplied, a react agent with the file_search tool handles turns while the
// index holds documents.
type Service struct {
	chatModel    model.ToolCallingChatModel
	agent        *react.Agent
	files        FileSearcher
	historyLimit int
	maxTokens    int
	log          logrus.FieldLogger
}

func NewService(ctx context.Context, chatModel model.ToolCallingChatModel, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	s := &Service{
		chatModel:    chatModel,
		files:        opts.Files,
		historyLimit: opts.HistoryLimit,
		maxTokens:    opts.MaxTokens,
		log:          opts.Logger,
	}
	if s.historyLimit <= 0 {
		s.historyLimit = DefaultHistoryLimit
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if opts.Files != nil {
		reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: []tool.BaseTool{NewFileSearchTool(opts.Files)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		s.agent = reactAgent
	}
	return s, nil
}

// Generate answers message given the recent client-held history and any
// caller-provided context.
func (s *Service) Generate(ctx context.Context, message string, history []models.HistoryMessage, extraContext string) (*Reply, error) {
	useTool := s.agent != nil && s.files.Len() > 0
	system := fmt.Sprintf(systemPromptTemplate, extraContext)
	if useTool {
		system += fileToolHint
	}
	input := s.buildMessages(system, message, history)
	opts := []model.Option{
		model.WithTemperature(chatTemperature),
		model.WithTopP(chatTopP),
		model.WithMaxTokens(s.maxTokens),
	}

	var (
		resp *schema.Message
		err  error
	)
	if useTool {
		resp, err = s.agent.Generate(ctx, input, agent.WithComposeOptions(compose.WithChatModelOption(opts...)))
	} else {
		resp, err = s.chatModel.Generate(ctx, input, opts...)
	}
	if err != nil {
		return nil, apperr.Upstream(serviceName, apperr.Classify(err), err)
	}
	if resp == nil {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, errors.New("empty model response"))
	}
	return &Reply{Text: resp.Content, Usage: UsageOf(resp)}, nil
}

func (s *Service) buildMessages(system, message string, history []models.HistoryMessage) []*schema.Message {
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}
	out := make([]*schema.Message, 0, len(history)+2)
	out = append(out, schema.SystemMessage(system))
	for _, h := range history {
		if h.Role() == models.RoleUser {
			out = append(out, schema.UserMessage(h.Text))
		} else {
			out = append(out, schema.AssistantMessage(h.Text, nil))
		}
	}
	return append(out, schema.UserMessage(message))
}

// UsageOf extracts token accounting from a model response.
func UsageOf(msg *schema.Message) models.Usage {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return models.Usage{}
	}
	u := msg.ResponseMeta.Usage
	return models.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
