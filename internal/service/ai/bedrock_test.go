package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockCompleteSendsAnthropicPayload(t *testing.T) {
	invoker := &fakeInvoker{body: `{"content":[{"type":"text","text":"Take COSC2536 in year 2."}],"stop_reason":"end_turn"}`}
	completer := NewBedrockCompleter(invoker, "anthropic.claude-3-haiku-20240307-v1:0", "")

	got, err := completer.Complete(context.Background(), "which units?", Options{MaxTokens: 640, Temperature: 0.3, TopP: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "Take COSC2536 in year 2.", got)

	require.NotNil(t, invoker.input)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(invoker.input.ModelId))
	assert.Equal(t, "application/json", aws.ToString(invoker.input.ContentType))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(invoker.input.Body, &payload))
	assert.Equal(t, "bedrock-2023-05-31", payload["anthropic_version"])
	assert.EqualValues(t, 640, payload["max_tokens"])
	assert.InDelta(t, 0.3, payload["temperature"], 1e-6)
	assert.InDelta(t, 0.9, payload["top_p"], 1e-6)
	messages := payload["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, map[string]any{"role": "user", "content": "which units?"}, messages[0])
}

func TestBedrockCompleteZeroTemperatureIsSent(t *testing.T) {
	invoker := &fakeInvoker{body: `{"content":[{"type":"text","text":"- goal"}]}`}
	completer := NewBedrockCompleter(invoker, "m", "")

	_, err := completer.Complete(context.Background(), "summarize", Options{MaxTokens: 256})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(invoker.input.Body, &payload))
	assert.Contains(t, payload, "temperature")
	assert.NotContains(t, payload, "top_p")
	assert.EqualValues(t, 256, payload["max_tokens"])
}

func TestBedrockCompleteMalformedResponse(t *testing.T) {
	for _, body := range []string{`not json`, `{"content":[]}`} {
		completer := NewBedrockCompleter(&fakeInvoker{body: body}, "m", "")

		_, err := completer.Complete(context.Background(), "q", Options{})
		var ce *CompletionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, KindMalformed, ce.Kind)
	}
}

func TestClassifyBedrockError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&smithy.GenericAPIError{Code: "ThrottlingException"}, KindThrottled},
		{&smithy.GenericAPIError{Code: "AccessDeniedException"}, KindAuth},
		{&smithy.GenericAPIError{Code: "ExpiredTokenException"}, KindAuth},
		{&smithy.GenericAPIError{Code: "ValidationException"}, KindMalformed},
		{&smithy.GenericAPIError{Code: "ModelTimeoutException"}, KindNetwork},
		{&smithy.GenericAPIError{Code: "SomethingNew"}, KindUnknown},
		{context.DeadlineExceeded, KindNetwork},
		{errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyBedrockError(tt.err), "%v", tt.err)
	}
}

func TestBedrockCompleteWrapsAPIError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	completer := NewBedrockCompleter(&fakeInvoker{err: apiErr}, "m", "")

	_, err := completer.Complete(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.True(t, IsCompletionError(err))
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "bedrock completion failed (throttled)")
}
