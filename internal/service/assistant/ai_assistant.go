package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"veron/internal/apperr"
)

const (
	lessonPlanSystemPrompt = "You are Veron, an expert English teaching assistant. " +
		"Create a detailed lesson plan for teaching technical English. " +
		"Format the response as a structured lesson plan with clear sections."
	analysisSystemPrompt = "You are Veron, analyzing a teaching document. " +
		"Extract key vocabulary, concepts, and teaching points that would be useful for English teachers in technical subjects."

	analysisMaxChars = 4000
	serviceName      = "assistant"
)

// Service produces teaching material from single-shot prompts.
type Service struct {
	chatModel model.BaseChatModel
}

func NewService(chatModel model.BaseChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	return &Service{chatModel: chatModel}, nil
}

// LessonPlan drafts a lesson plan for topic at the given level and length in minutes.
func (s *Service) LessonPlan(ctx context.Context, topic, level string, duration int) (string, error) {
	userPrompt := fmt.Sprintf("Create a %d-minute lesson plan for teaching %q to %s level English students. "+
		"Include objectives, vocabulary, activities, and assessment methods.", duration, topic, level)
	return s.generate(ctx, lessonPlanSystemPrompt, userPrompt,
		model.WithTemperature(0.5),
		model.WithTopP(0.8),
		model.WithMaxTokens(3000),
	)
}

// AnalyzeDocument extracts teaching points from the first part of a document.
func (s *Service) AnalyzeDocument(ctx context.Context, text, filename string) (string, error) {
	if r := []rune(text); len(r) > analysisMaxChars {
		text = string(r[:analysisMaxChars])
	}
	userPrompt := fmt.Sprintf(`Analyze this document %q and extract:
1. Key technical vocabulary terms
2. Main concepts to teach
3. Suggested teaching activities
4. Difficulty level assessment

Document content: %s`, filename, text)
	return s.generate(ctx, analysisSystemPrompt, userPrompt,
		model.WithTemperature(0.3),
		model.WithTopP(0.7),
		model.WithMaxTokens(2000),
	)
}

func (s *Service) generate(ctx context.Context, system, user string, opts ...model.Option) (string, error) {
	resp, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}, opts...)
	if err != nil {
		return "", apperr.Upstream(serviceName, apperr.Classify(err), err)
	}
	if resp == nil || resp.Content == "" {
		return "", apperr.Upstream(serviceName, apperr.CategoryUnavailable, errors.New("empty model response"))
	}
	return resp.Content, nil
}
