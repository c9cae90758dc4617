package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ArkCompleter answers prompts through an eino chat model (Volcengine Ark).
type ArkCompleter struct {
	chatModel model.BaseChatModel
}

// NewArkCompleter wraps chatModel.
func NewArkCompleter(chatModel model.BaseChatModel) *ArkCompleter {
	return &ArkCompleter{chatModel: chatModel}
}

// Complete implements Completer.
func (c *ArkCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	msg, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, modelOptions(opts)...)
	if err != nil {
		return "", newCompletionError(ProviderArk, classifyTransport(err), err)
	}
	if msg == nil {
		return "", newCompletionError(ProviderArk, KindMalformed, errors.New("empty response message"))
	}
	return msg.Content, nil
}

// CompleteStream implements StreamCompleter.
func (c *ArkCompleter) CompleteStream(ctx context.Context, prompt string, opts Options, onDelta func(string)) (string, error) {
	stream, err := c.chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)}, modelOptions(opts)...)
	if err != nil {
		return "", newCompletionError(ProviderArk, classifyTransport(err), err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", newCompletionError(ProviderArk, classifyTransport(recvErr), recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return "", newCompletionError(ProviderArk, KindMalformed, errors.New("stream produced no chunks"))
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", newCompletionError(ProviderArk, KindMalformed, fmt.Errorf("concat chunks: %w", err))
	}
	return merged.Content, nil
}

func modelOptions(opts Options) []model.Option {
	options := []model.Option{model.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		options = append(options, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.TopP > 0 {
		options = append(options, model.WithTopP(opts.TopP))
	}
	return options
}
