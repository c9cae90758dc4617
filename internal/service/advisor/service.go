package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/course-advisor/backend/internal/memory"
	"github.com/zhouzirui/course-advisor/backend/internal/model/catalog"
	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/observability"
	"github.com/zhouzirui/course-advisor/backend/internal/service/ai"
	chatsvc "github.com/zhouzirui/course-advisor/backend/internal/service/chat"
)

const (
	purposeAnswer  = "answer"
	purposeSummary = "summary"

	errorTurnPrefix = "[Error]: "
)

// CompleterSource hands out the completer a session should use.
type CompleterSource interface {
	ForIdentity(ctx context.Context, identity chat.Identity, modelID string) (ai.Completer, error)
}

// Config tunes the advisor.
type Config struct {
	// Answer holds the sampling options for answer calls.
	Answer ai.Options
	// SummaryMaxTokens caps the length of summaries.
	SummaryMaxTokens int
}

// Reply is the outcome of one Ask.
type Reply struct {
	Turn chat.Turn `json:"turn"`
	// Summarized reports whether a summarization pass ran during this exchange.
	Summarized bool `json:"summarized"`
	// Failed reports that Turn is an error turn rather than an answer.
	Failed bool `json:"failed"`
}

type askOptions struct {
	onDelta func(string)
}

// AskOption customizes a single Ask.
type AskOption func(*askOptions)

// WithDeltaHandler streams partial answer text to fn as it arrives.
func WithDeltaHandler(fn func(string)) AskOption {
	return func(o *askOptions) {
		o.onDelta = fn
	}
}

// Service answers questions against the session's memory and context data.
type Service struct {
	sessions   *chatsvc.Service
	catalog    catalog.Store
	completers CompleterSource
	cfg        Config
}

// NewService wires the advisor.
func NewService(sessions *chatsvc.Service, store catalog.Store, completers CompleterSource, cfg Config) *Service {
	if cfg.Answer.Purpose == "" {
		cfg.Answer.Purpose = purposeAnswer
	}
	return &Service{sessions: sessions, catalog: store, completers: completers, cfg: cfg}
}

// Catalog returns the course catalog used in catalog mode.
func (s *Service) Catalog() catalog.Store {
	return s.catalog
}

// Ask runs one question/answer exchange. Completion failures never surface as errors: they are
// recorded as an "[Error]: ..." assistant turn and reported through Reply.Failed. Returned errors
// mean nothing was appended.
func (s *Service) Ask(ctx context.Context, sessionID, question string, opts ...AskOption) (Reply, error) {
	var options askOptions
	for _, opt := range opts {
		opt(&options)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return Reply{}, memory.ErrEmptyInput
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	taskContext, err := s.contextFor(ctx, session)
	if err != nil {
		return Reply{}, err
	}
	identity, err := s.sessions.Identity(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	completer, completerErr := s.completers.ForIdentity(ctx, identity, session.ModelID)
	if completerErr != nil {
		log.Printf("[advisor] session %s: resolve completer failed: %v", sessionID, completerErr)
	}
	summarizer := memory.NewSummarizer(s.summaryFunc(completer, completerErr), s.cfg.SummaryMaxTokens)

	var reply Reply
	err = s.sessions.WithConversation(ctx, sessionID, func(conv *memory.Conversation) error {
		if s.appendTurn(conv, chat.UserTurn(question)) {
			s.summarize(ctx, sessionID, conv, summarizer)
			reply.Summarized = true
		}

		prompt, err := conv.BuildPrompt(taskContext, question)
		if err != nil {
			return err
		}

		answer, err := s.complete(ctx, completer, completerErr, prompt, options.onDelta)
		turn := chat.AssistantTurn(answer)
		if err != nil {
			log.Printf("[advisor] session %s: answer failed: %v", sessionID, err)
			turn = chat.AssistantTurn(errorTurnPrefix + err.Error())
			reply.Failed = true
		}

		if s.appendTurn(conv, turn) {
			s.summarize(ctx, sessionID, conv, summarizer)
			reply.Summarized = true
		}
		reply.Turn = turn
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (s *Service) contextFor(ctx context.Context, session chat.Session) (string, error) {
	switch session.Mode {
	case chat.ModeDocuments:
		docs, err := s.sessions.Documents(ctx, session.ID)
		if err != nil {
			return "", err
		}
		return DocumentContext(docs)
	default:
		return CatalogContext(s.catalog)
	}
}

func (s *Service) complete(ctx context.Context, completer ai.Completer, completerErr error, prompt string, onDelta func(string)) (string, error) {
	if completerErr != nil {
		return "", completerErr
	}
	if completer == nil {
		return "", errors.New("no completion backend configured")
	}

	if onDelta == nil {
		return completer.Complete(ctx, prompt, s.cfg.Answer)
	}
	if streamer, ok := completer.(ai.StreamCompleter); ok {
		return streamer.CompleteStream(ctx, prompt, s.cfg.Answer, onDelta)
	}

	text, err := completer.Complete(ctx, prompt, s.cfg.Answer)
	if err == nil && text != "" {
		onDelta(text)
	}
	return text, err
}

func (s *Service) summaryFunc(completer ai.Completer, completerErr error) memory.CompleteFunc {
	return func(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
		if completerErr != nil {
			return "", fmt.Errorf("completer unavailable: %w", completerErr)
		}
		if completer == nil {
			return "", errors.New("no completion backend configured")
		}
		return completer.Complete(ctx, prompt, ai.Options{
			MaxTokens:   maxTokens,
			Temperature: temperature,
			Purpose:     purposeSummary,
		})
	}
}

func (s *Service) appendTurn(conv *memory.Conversation, turn chat.Turn) bool {
	observability.RecordTurn(string(turn.Role))
	return conv.Append(turn)
}

func (s *Service) summarize(ctx context.Context, sessionID string, conv *memory.Conversation, summarizer *memory.Summarizer) {
	previous := conv.Summary()
	if conv.Refresh(ctx, summarizer) == previous {
		observability.RecordSummary("kept")
		return
	}
	observability.RecordSummary("refreshed")
	log.Printf("[advisor] session %s: summary refreshed at %d turns", sessionID, conv.Count())
}
