package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
)

// CompleteFunc sends a prompt to the completion backend and returns the generated text.
type CompleteFunc func(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)

// Summarizer condenses a transcript into a short bullet digest.
type Summarizer struct {
	complete  CompleteFunc
	maxTokens int
	template  prompt.ChatTemplate
}

// NewSummarizer returns a Summarizer that asks complete for digests of at most maxTokens.
func NewSummarizer(complete CompleteFunc, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultConfig().SummaryMaxTokens
	}
	return &Summarizer{
		complete:  complete,
		maxTokens: maxTokens,
		template:  prompt.FromMessages(schema.FString, schema.UserMessage(summaryPrompt)),
	}
}

// Summarize returns a fresh digest of turns. An empty transcript yields "" without contacting
// the backend. Any failure is logged and previous is returned unchanged.
func (s *Summarizer) Summarize(ctx context.Context, turns []chat.Turn, previous string) string {
	if len(turns) == 0 {
		return ""
	}

	summary, err := s.run(ctx, turns)
	if err != nil {
		log.Printf("[memory] summarization failed, keep previous summary: %v", err)
		return previous
	}
	return summary
}

func (s *Summarizer) run(ctx context.Context, turns []chat.Turn) (string, error) {
	if s.complete == nil {
		return "", errors.New("no completion backend configured")
	}

	messages, err := s.template.Format(ctx, map[string]any{
		"conversation": RenderTurns(turns),
	})
	if err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}
	if len(messages) == 0 || messages[0] == nil {
		return "", errors.New("summary prompt rendered no messages")
	}

	text, err := s.complete(ctx, messages[0].Content, s.maxTokens, 0)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(text)
	if summary == "" {
		return "", errors.New("empty summary returned")
	}
	return summary, nil
}

const summaryPrompt = "You are a system that produces a concise summary of a conversation between a user and an assistant.\n\n" +
	"Conversation:\n{conversation}\n\n" +
	"Provide a short bullet-list summary (3-6 bullets) capturing the user's goals, preferences, constraints and any decisions."
