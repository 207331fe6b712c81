package agent

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"veron/internal/config"
)

// EventReader yields the response stream of one agent invocation.
type EventReader interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// Runtime starts agent invocations.
type Runtime interface {
	InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (EventReader, error)
}

// BedrockRuntime is the Runtime backed by the AWS agent runtime API.
type BedrockRuntime struct {
	client *bedrockagentruntime.Client
}

// NewBedrockRuntime builds the client. Static keys are used when both are
// configured; otherwise the default AWS credential chain applies.
func NewBedrockRuntime(ctx context.Context, cfg config.AWSConfig) (*BedrockRuntime, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockRuntime{client: bedrockagentruntime.NewFromConfig(awsCfg)}, nil
}

func (b *BedrockRuntime) InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (EventReader, error) {
	out, err := b.client.InvokeAgent(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

func invokeInput(agentID, aliasID, sessionID, text string) *bedrockagentruntime.InvokeAgentInput {
	return &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(agentID),
		AgentAliasId: aws.String(aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(text),
		EnableTrace:  aws.Bool(true),
	}
}
