package ai

import (
	"context"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAICompleteSendsRequest(t *testing.T) {
	client := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Try the networking minor."}}},
	}}
	completer := NewOpenAICompleter(client, "gpt-4o-mini")

	got, err := completer.Complete(context.Background(), "electives?", Options{MaxTokens: 640, Temperature: 0.3, TopP: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "Try the networking minor.", got)

	assert.Equal(t, "gpt-4o-mini", client.req.Model)
	assert.Equal(t, 640, client.req.MaxTokens)
	assert.InDelta(t, 0.3, client.req.Temperature, 1e-6)
	require.Len(t, client.req.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, client.req.Messages[0].Role)
	assert.Equal(t, "electives?", client.req.Messages[0].Content)
}

func TestOpenAICompleteZeroTemperatureStaysPositive(t *testing.T) {
	client := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "- goal"}}},
	}}

	_, err := NewOpenAICompleter(client, "m").Complete(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Greater(t, client.req.Temperature, float32(0))
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	_, err := NewOpenAICompleter(&fakeChatClient{}, "m").Complete(context.Background(), "q", Options{})

	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindMalformed, ce.Kind)
}

func TestClassifyOpenAIError(t *testing.T) {
	assert.Equal(t, KindAuth, classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized}))
	assert.Equal(t, KindThrottled, classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.Equal(t, KindNetwork, classifyOpenAIError(&openai.RequestError{HTTPStatusCode: http.StatusBadGateway}))
	assert.Equal(t, KindMalformed, classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusBadRequest}))
}
