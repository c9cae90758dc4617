package ai

import (
	"context"
	"errors"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompletionAPI is the subset of the go-openai client used here.
type ChatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter talks to any OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client ChatCompletionAPI
	model  string
}

// NewOpenAICompleter returns a completer bound to model.
func NewOpenAICompleter(client ChatCompletionAPI, model string) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model}
}

// NewOpenAIClient builds a go-openai client, honouring a custom base URL.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	temperature := opts.Temperature
	if temperature == 0 {
		// go-openai drops zero values; the smallest float keeps sampling deterministic.
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		return "", newCompletionError(ProviderOpenAI, classifyOpenAIError(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", newCompletionError(ProviderOpenAI, KindMalformed, errors.New("response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) ErrorKind {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return classifyTransport(err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindThrottled
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindMalformed
	case status >= http.StatusInternalServerError:
		return KindNetwork
	default:
		return KindUnknown
	}
}
