package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"veron/internal/config"
)

// NewChatModel builds the chat model for the configured provider. The default
// provider reaches Claude through Bedrock with the AWS credentials.
func NewChatModel(ctx context.Context, chat config.ChatConfig, aws config.AWSConfig) (model.ToolCallingChatModel, error) {
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch chat.Provider {
	case "", "bedrock":
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			ByBedrock:       true,
			AccessKey:       aws.AccessKeyID,
			SecretAccessKey: aws.SecretAccessKey,
			Region:          aws.Region,
			Model:           chat.Model,
			MaxTokens:       chat.MaxTokens,
		})
	case "claude":
		var baseURLPtr *string
		if chat.BaseURL != "" {
			baseURLPtr = &chat.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    chat.APIKey,
			Model:     chat.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: chat.MaxTokens,
		})
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: chat.BaseURL,
			Model:   chat.Model,
			APIKey:  chat.APIKey,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: chat.APIKey,
		})
		if cerr != nil {
			return nil, fmt.Errorf("init gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  chat.Model,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", chat.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", chat.Provider, err)
	}
	return chatModel, nil
}
