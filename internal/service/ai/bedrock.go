package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockCompleter invokes Anthropic models hosted on Amazon Bedrock.
type BedrockCompleter struct {
	client           InvokeModelAPI
	modelID          string
	anthropicVersion string
}

// NewBedrockCompleter returns a completer bound to modelID.
func NewBedrockCompleter(client InvokeModelAPI, modelID, anthropicVersion string) *BedrockCompleter {
	if anthropicVersion == "" {
		anthropicVersion = "bedrock-2023-05-31"
	}
	return &BedrockCompleter{client: client, modelID: modelID, anthropicVersion: anthropicVersion}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
	TopP             *float32           `json:"top_p,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Complete implements Completer.
func (c *BedrockCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	body, err := c.buildBody(prompt, opts)
	if err != nil {
		return "", newCompletionError(ProviderBedrock, KindMalformed, err)
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", newCompletionError(ProviderBedrock, classifyBedrockError(err), err)
	}

	text, err := parseAnthropicResponse(out.Body)
	if err != nil {
		return "", newCompletionError(ProviderBedrock, KindMalformed, err)
	}
	return text, nil
}

func (c *BedrockCompleter) buildBody(prompt string, opts Options) ([]byte, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 640
	}

	req := anthropicRequest{
		AnthropicVersion: c.anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      opts.Temperature,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	}
	if opts.TopP > 0 {
		topP := opts.TopP
		req.TopP = &topP
	}

	return json.Marshal(req)
}

func parseAnthropicResponse(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("response has no content blocks")
	}
	return resp.Content[0].Text, nil
}

func classifyBedrockError(err error) ErrorKind {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return classifyTransport(err)
	}

	code := apiErr.ErrorCode()
	switch {
	case code == "ThrottlingException", code == "ServiceQuotaExceededException", code == "TooManyRequestsException":
		return KindThrottled
	case code == "AccessDeniedException", code == "UnrecognizedClientException",
		code == "ExpiredTokenException", strings.HasPrefix(code, "InvalidSignature"):
		return KindAuth
	case code == "ValidationException", code == "ModelErrorException":
		return KindMalformed
	case code == "ModelTimeoutException", code == "ServiceUnavailableException", code == "InternalServerException":
		return KindNetwork
	default:
		return KindUnknown
	}
}
