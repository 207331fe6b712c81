// Package agent invokes the managed agent runtime and keeps its mutable
// system prompt.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"veron/internal/apperr"
	"veron/internal/filecontext"
	"veron/internal/models"
	"veron/internal/session"
)

const (
	serviceName         = "agent"
	DefaultContextFiles = 3
)

// DefaultSystemPrompt is prepended to every user message.
const DefaultSystemPrompt = `IMPORTANT INSTRUCTIONS:
- You are an English teaching AI assistant focused on helping with language learning and technical English.
- NEVER ask users to write functions, code, or technical implementations.
- If you cannot access information, knowledge bases, or external resources, simply respond with "I can't access that information right now."
- Do not request users to provide code examples, write functions, or implement solutions.
- Focus on explaining concepts clearly in simple English rather than asking for technical work.
- Keep responses educational and helpful for English language learners.
- Provide clear, concise explanations without requiring users to do technical work.

User question: `

// ContextSource ranks uploaded files against a message.
type ContextSource interface {
	RelevantFiles(query string, maxFiles int) []filecontext.ScoredFile
}

// Result is the outcome of one agent turn.
type Result struct {
	Text              string             `json:"message"`
	SessionID         string             `json:"session_id"`
	Timestamp         time.Time          `json:"timestamp"`
	Traces            []models.TraceInfo `json:"trace_info"`
	UsedFileContext   bool               `json:"used_file_context"`
	ContextFilesCount int                `json:"context_files_count"`
}

type Options struct {
	AgentID      string
	AliasID      string
	SystemPrompt string
	ContextFiles int
	Files        ContextSource
	Sessions     *session.Store
	Logger       logrus.FieldLogger
}

type Service struct {
	runtime      Runtime
	agentID      string
	aliasID      string
	files        ContextSource
	contextFiles int
	sessions     *session.Store
	log          logrus.FieldLogger
	now          func() time.Time

	mu           sync.RWMutex
	systemPrompt string
}

func NewService(runtime Runtime, opts Options) *Service {
	s := &Service{
		runtime:      runtime,
		agentID:      opts.AgentID,
		aliasID:      opts.AliasID,
		files:        opts.Files,
		contextFiles: opts.ContextFiles,
		sessions:     opts.Sessions,
		log:          opts.Logger,
		now:          time.Now,
		systemPrompt: opts.SystemPrompt,
	}
	if s.systemPrompt == "" {
		s.systemPrompt = DefaultSystemPrompt
	}
	if s.contextFiles <= 0 {
		s.contextFiles = DefaultContextFiles
	}
	if s.sessions == nil {
		s.sessions = session.NewStore(session.DefaultIdleTimeout)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// Sessions exposes the session bookkeeping shared with the HTTP layer.
func (s *Service) Sessions() *session.Store {
	return s.sessions
}

// SystemPrompt returns the prompt currently prepended to user messages.
func (s *Service) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt
}

// SetSystemPrompt replaces the prompt. Blank prompts are rejected.
func (s *Service) SetSystemPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return apperr.Validation("prompt", "System prompt must be a non-empty string")
	}
	s.mu.Lock()
	s.systemPrompt = prompt
	s.mu.Unlock()
	s.log.Info("agent system prompt updated")
	return nil
}

// Chat answers message, adding summaries of the most relevant uploaded files.
func (s *Service) Chat(ctx context.Context, message, sessionID string) (*Result, error) {
	var relevant []filecontext.ScoredFile
	if s.files != nil {
		relevant = s.files.RelevantFiles(message, s.contextFiles)
	}
	prompt := message
	if len(relevant) > 0 {
		prompt = message + "\n\nRelevant content from uploaded files:\n" + filecontext.FormatContext(relevant)
	}
	res, err := s.Invoke(ctx, prompt, sessionID)
	if err != nil {
		return nil, err
	}
	res.UsedFileContext = len(relevant) > 0
	res.ContextFilesCount = len(relevant)
	return res, nil
}

// Invoke sends prompt, prefixed with the system prompt, to the remote agent.
// An empty sessionID starts a new session.
func (s *Service) Invoke(ctx context.Context, prompt, sessionID string) (*Result, error) {
	if s.runtime == nil || s.agentID == "" || s.aliasID == "" {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, errors.New("agent runtime not configured"))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	input := invokeInput(s.agentID, s.aliasID, sessionID, s.SystemPrompt()+prompt)

	stream, err := s.runtime.InvokeAgent(ctx, input)
	if err != nil {
		return nil, apperr.Upstream(serviceName, apperr.Classify(err), fmt.Errorf("invoke agent: %w", err))
	}
	defer stream.Close()

	var (
		completion strings.Builder
		traces     = []models.TraceInfo{}
	)
	for event := range stream.Events() {
		switch ev := event.(type) {
		case *types.ResponseStreamMemberChunk:
			completion.Write(ev.Value.Bytes)
		case *types.ResponseStreamMemberTrace:
			if info, ok := s.traceInfo(ev.Value); ok {
				traces = append(traces, info)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, apperr.Upstream(serviceName, apperr.Classify(err), fmt.Errorf("read agent stream: %w", err))
	}

	s.sessions.Touch(sessionID)
	return &Result{
		Text:      completion.String(),
		SessionID: sessionID,
		Timestamp: s.now(),
		Traces:    traces,
	}, nil
}

func (s *Service) traceInfo(part types.TracePart) (models.TraceInfo, bool) {
	kind := traceKind(part.Trace)
	detail, err := json.Marshal(part.Trace)
	if err != nil {
		s.log.WithField("trace", kind).Warnf("skip unserializable trace: %v", err)
		return models.TraceInfo{}, false
	}
	s.log.WithField("trace", kind).Debug(string(detail))
	return models.TraceInfo{Type: kind, Detail: detail}, true
}

func traceKind(t types.Trace) string {
	switch t.(type) {
	case *types.TraceMemberOrchestrationTrace:
		return "orchestrationTrace"
	case *types.TraceMemberPreProcessingTrace:
		return "preProcessingTrace"
	case *types.TraceMemberPostProcessingTrace:
		return "postProcessingTrace"
	case *types.TraceMemberFailureTrace:
		return "failureTrace"
	case *types.TraceMemberGuardrailTrace:
		return "guardrailTrace"
	case nil:
		return "empty"
	default:
		return "unknown"
	}
}
